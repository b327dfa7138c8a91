package nodes

import (
	"sort"

	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/note"
	"github.com/chase3718/mixery/signal"
	"github.com/chase3718/mixery/uid"
)

// PortLocation is a (node id, port id) pair.
type PortLocation [2]string

// PortsConnection is one persisted edge, always output to input.
type PortsConnection struct {
	From PortLocation `yaml:"from,flow"`
	To   PortLocation `yaml:"to,flow"`
}

func connectionOf(from, to Port) PortsConnection {
	return PortsConnection{
		From: PortLocation{nodeID(from.Node()), from.ID()},
		To:   PortLocation{nodeID(to.Node()), to.ID()},
	}
}

// Network owns a set of nodes and the connections between their ports.
// It is not safe for concurrent use.
type Network struct {
	Name         string
	ViewX, ViewY float64

	ctx         *Context
	owner       *GroupNode
	output      *signal.Bus
	nodes       []Node
	connections []PortsConnection
	loading     bool
	onChange    []func()
}

// NewNetwork builds an empty network whose speakers feed a fresh output bus.
func NewNetwork(ctx *Context, name string) *Network {
	return &Network{
		Name:   name,
		ctx:    ctx,
		output: ctx.Engine.NewBus(name + ".out"),
	}
}

func (n *Network) Context() *Context   { return n.ctx }
func (n *Network) Output() *signal.Bus { return n.output }

// Owner is the group embedding this network, nil at top level.
func (n *Network) Owner() *GroupNode { return n.owner }

// OnChange registers fn to run whenever a node is added or removed.
func (n *Network) OnChange(fn func()) { n.onChange = append(n.onChange, fn) }

func (n *Network) changed() {
	for _, fn := range n.onChange {
		fn()
	}
}

// GenerateNodeID never repeats within a process.
func (n *Network) GenerateNodeID() string {
	return "node-" + uid.New().String()
}

func (n *Network) Nodes() []Node { return append([]Node(nil), n.nodes...) }

func (n *Network) Connections() []PortsConnection {
	return append([]PortsConnection(nil), n.connections...)
}

func (n *Network) Node(id string) Node {
	for _, node := range n.nodes {
		if node.ID() == id {
			return node
		}
	}
	return nil
}

// Select resolves a port among the node's inputs and outputs.
func (n *Network) Select(nodeID, portID string) Port {
	node := n.Node(nodeID)
	if node == nil {
		return nil
	}
	for _, p := range Ports(node) {
		if p.ID() == portID {
			return p
		}
	}
	return nil
}

// Add appends node. Ids must be unique within the network.
func (n *Network) Add(node Node) error {
	if node == nil {
		return protocolf("nodes: add nil node")
	}
	if n.Node(node.ID()) != nil {
		return protocolf("nodes: duplicate node id %s", node.ID())
	}
	n.nodes = append(n.nodes, node)
	if a, ok := node.(attacher); ok {
		a.attach(n)
	}
	n.changed()
	return nil
}

type attacher interface {
	attach(*Network)
}

// Create builds a new node of typeID with a fresh id and adds it.
func (n *Network) Create(typeID string) (Node, error) {
	f, ok := n.factories().Get(typeID)
	if !ok {
		return nil, notFoundf("nodes: unknown node type %s", typeID)
	}
	node, err := f.New(n, n.GenerateNodeID())
	if err != nil {
		return nil, wrap(err, "nodes: create "+typeID)
	}
	if err := n.Add(node); err != nil {
		node.Destroy()
		return nil, err
	}
	return node, nil
}

func (n *Network) factories() Lookup {
	if n.ctx.Factories == nil {
		return NewRegistry()
	}
	return n.ctx.Factories
}

// Remove disconnects and destroys the node.
func (n *Network) Remove(id string) error {
	node := n.Node(id)
	if node == nil {
		return notFoundf("nodes: no node %s", id)
	}
	if u, ok := node.(Undeletable); ok && u.Undeletable() {
		return protocolf("nodes: node %s can not be deleted", id)
	}
	n.disconnectNode(node)
	for i, other := range n.nodes {
		if other == node {
			n.nodes = append(n.nodes[:i], n.nodes[i+1:]...)
			break
		}
	}
	node.Destroy()
	n.changed()
	return nil
}

// disconnectNode drops every connection touching node.
func (n *Network) disconnectNode(node Node) {
	for _, c := range n.Connections() {
		if c.From[0] != node.ID() && c.To[0] != node.ID() {
			continue
		}
		from, to := n.Select(c.From[0], c.From[1]), n.Select(c.To[0], c.To[1])
		if from == nil || to == nil || !n.Disconnect(from, to) {
			n.forget(c)
		}
	}
}

// forget drops the record of c without touching any port.
func (n *Network) forget(c PortsConnection) {
	for i, existing := range n.connections {
		if existing == c {
			n.connections = append(n.connections[:i], n.connections[i+1:]...)
			return
		}
	}
}

// Connect links from to to. It reports false without error when the ports
// are already connected or the port refuses the link. Connecting to or from
// a group placeholder port creates a bridge instead.
func (n *Network) Connect(from, to Port) (bool, error) {
	if from == nil || to == nil {
		return false, protocolf("nodes: connect nil port")
	}
	fp, fromPlaceholder := from.(*PlaceholderPort)
	tp, toPlaceholder := to.(*PlaceholderPort)
	switch {
	case fromPlaceholder && toPlaceholder:
		return false, protocolf("nodes: can not connect two placeholder ports")
	case fromPlaceholder:
		return fp.io.handleConnectTo(n, to)
	case toPlaceholder:
		return tp.io.handleConnectFrom(n, from)
	}

	if from.Type() != to.Type() {
		return false, protocolf("nodes: can not connect %s port to %s port", from.Type(), to.Type())
	}
	if from.base().isConnectedTo(to) {
		return false, nil
	}
	if reaches(to, from) {
		return false, protocolf("nodes: connecting %s/%s to %s/%s would create a cycle",
			nodeID(from.Node()), from.ID(), nodeID(to.Node()), to.ID())
	}
	if !link(from, to) {
		return false, nil
	}
	if !n.loading {
		n.connections = append(n.connections, connectionOf(from, to))
	}
	return true, nil
}

// Disconnect reports whether a connection was removed.
func (n *Network) Disconnect(from, to Port) bool {
	if from == nil || to == nil || !unlink(from, to) {
		return false
	}
	n.forget(connectionOf(from, to))
	return true
}

// router is implemented by nodes whose inputs feed only some outputs.
type router interface {
	routes(in Port) []Port
}

// reaches reports whether target is reachable from start by following
// connections and, inside a node, from each input to the outputs it feeds.
func reaches(start, target Port) bool {
	seen := make(map[Port]bool)
	stack := []Port{start}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p == target {
			return true
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		stack = append(stack, p.base().connected...)
		stack = append(stack, internalRoutes(p)...)
	}
	return false
}

func internalRoutes(p Port) []Port {
	node := p.Node()
	if node == nil {
		return nil
	}
	if r, ok := node.(router); ok {
		return r.routes(p)
	}
	for _, in := range node.Inputs() {
		if in == p {
			return node.Outputs()
		}
	}
	return nil
}

// SendNote emits n from the first notes source listening on channel. It
// reports false when no source matches.
func (n *Network) SendNote(channel string, ev note.Note) (bool, error) {
	for _, node := range n.nodes {
		src, ok := node.(*NotesSourceNode)
		if !ok || src.Channel() != channel {
			continue
		}
		return true, src.out.EmitNote(ev)
	}
	return false, nil
}

// AudioSource returns the first audio source listening on channel.
func (n *Network) AudioSource(channel string) *AudioSourceNode {
	for _, node := range n.nodes {
		if src, ok := node.(*AudioSourceNode); ok && src.Channel() == channel {
			return src
		}
	}
	return nil
}

// Destroy destroys every node.
func (n *Network) Destroy() {
	for _, node := range n.nodes {
		n.disconnectNode(node)
	}
	for _, node := range n.nodes {
		node.Destroy()
	}
	n.nodes = nil
	n.connections = nil
}

// SavedNetwork is the persisted shape of a network.
type SavedNetwork struct {
	Name        string               `yaml:"name,omitempty"`
	Nodes       map[string]SavedNode `yaml:"nodes"`
	Connections []PortsConnection    `yaml:"connections"`
	ViewX       float64              `yaml:"viewX"`
	ViewY       float64              `yaml:"viewY"`
}

// SavedNode is the persisted shape of one node.
type SavedNode struct {
	TypeID   string        `yaml:"type"`
	Name     string        `yaml:"name,omitempty"`
	X        float64       `yaml:"x"`
	Y        float64       `yaml:"y"`
	Data     Params        `yaml:"data,omitempty"`
	Children *SavedNetwork `yaml:"children,omitempty"`
	Bridges  []SavedBridge `yaml:"bridges,omitempty"`
}

// SavedBridge describes one inside/outside port pair of a group boundary.
type SavedBridge struct {
	Type        string `yaml:"type"`
	InsideID    string `yaml:"insideId"`
	InsideName  string `yaml:"insideName,omitempty"`
	OutsideID   string `yaml:"outsideId"`
	OutsideName string `yaml:"outsideName,omitempty"`
}

func (n *Network) Save() SavedNetwork {
	saved := SavedNetwork{
		Name:        n.Name,
		Nodes:       make(map[string]SavedNode, len(n.nodes)),
		Connections: n.Connections(),
		ViewX:       n.ViewX,
		ViewY:       n.ViewY,
	}
	for _, node := range n.nodes {
		saved.Nodes[node.ID()] = saveNode(node)
	}
	return saved
}

func saveNode(node Node) SavedNode {
	x, y := node.Position()
	sn := SavedNode{TypeID: node.TypeID(), Name: node.Name(), X: x, Y: y, Data: node.Save()}
	if c, ok := node.(composite); ok {
		c.saveInto(&sn)
	}
	return sn
}

// Load replaces the network's content with saved. Unknown node types and
// connections whose endpoints do not resolve are logged and skipped.
func (n *Network) Load(saved SavedNetwork) error {
	log := logging.L()
	n.Destroy()
	n.loading = true
	defer func() { n.loading = false }()

	n.Name = saved.Name
	n.ViewX, n.ViewY = saved.ViewX, saved.ViewY

	ids := make([]string, 0, len(saved.Nodes))
	for id := range saved.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		sn := saved.Nodes[id]
		node, err := n.restore(id, sn)
		if err != nil {
			log.Warn("nodes: unable to load node", "id", id, "type", sn.TypeID, "err", err)
			continue
		}
		if err := n.Add(node); err != nil {
			log.Warn("nodes: unable to add node", "id", id, "err", err)
			node.Destroy()
		}
	}

	for _, c := range saved.Connections {
		from, to := n.Select(c.From[0], c.From[1]), n.Select(c.To[0], c.To[1])
		if from == nil || to == nil {
			log.Warn("nodes: unable to link", "from", c.From[0]+"/"+c.From[1], "to", c.To[0]+"/"+c.To[1])
			continue
		}
		ok, err := n.Connect(from, to)
		if err != nil {
			log.Warn("nodes: unable to link", "from", c.From[0]+"/"+c.From[1], "to", c.To[0]+"/"+c.To[1], "err", err)
			continue
		}
		if ok {
			n.connections = append(n.connections, connectionOf(from, to))
		}
	}
	return nil
}

func (n *Network) restore(id string, sn SavedNode) (Node, error) {
	f, ok := n.factories().Get(sn.TypeID)
	if !ok {
		return nil, topologyf("unknown node type %s", sn.TypeID)
	}
	if sn.Data == nil {
		sn.Data = Params{}
	}
	node, err := f.Existing(n, id, sn)
	if err != nil {
		return nil, err
	}
	node.SetPosition(sn.X, sn.Y)
	if sn.Name != "" {
		node.SetName(sn.Name)
	}
	return node, nil
}

// disconnectPort drops every connection from or to p.
func (n *Network) disconnectPort(p Port) {
	for _, c := range n.Connections() {
		from, to := n.Select(c.From[0], c.From[1]), n.Select(c.To[0], c.To[1])
		if from == p || to == p {
			n.Disconnect(from, to)
		}
	}
}
