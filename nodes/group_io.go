package nodes

import (
	"github.com/chase3718/mixery/internal/logging"
)

const (
	GroupInputsTypeID  = "mixery:group_inputs_node"
	GroupOutputsTypeID = "mixery:group_outputs_node"

	GroupInputsID  = "inputs"
	GroupOutputsID = "outputs"
)

// GroupIONode is one of the two permanent boundary nodes of a group's
// embedded network. Each bridge pairs an inside port, seen by the embedded
// network, with an outside port on the group itself. inside[i] and
// outside[i] always belong to the same bridge.
type GroupIONode struct {
	Base
	group       *GroupNode
	outToIn     bool
	inside      []Port
	outside     []Port
	placeholder *PlaceholderPort
}

func newGroupIONode(group *GroupNode, inputs bool) *GroupIONode {
	io := &GroupIONode{group: group, outToIn: inputs}
	if inputs {
		io.Base = NewBase(GroupInputsTypeID, GroupInputsID, "Inputs")
		io.SetPosition(-100, 0)
	} else {
		io.Base = NewBase(GroupOutputsTypeID, GroupOutputsID, "Outputs")
		io.SetPosition(100, 0)
	}
	io.placeholder = newPlaceholderPort(io)
	return io
}

func (io *GroupIONode) Undeletable() bool { return true }

func (io *GroupIONode) Placeholder() *PlaceholderPort { return io.placeholder }

func (io *GroupIONode) Inputs() []Port {
	if io.outToIn {
		return nil
	}
	return append(append([]Port(nil), io.inside...), io.placeholder)
}

func (io *GroupIONode) Outputs() []Port {
	if !io.outToIn {
		return nil
	}
	return append(append([]Port(nil), io.inside...), io.placeholder)
}

// Bridges returns the inside and outside ports, index aligned.
func (io *GroupIONode) Bridges() (inside, outside []Port) {
	return append([]Port(nil), io.inside...), append([]Port(nil), io.outside...)
}

// Data flows through bridges as port links, not through the node.
func (io *GroupIONode) routes(Port) []Port { return nil }

func (io *GroupIONode) saveInto(sn *SavedNode) {
	for i := range io.inside {
		in, out := io.inside[i], io.outside[i]
		sn.Bridges = append(sn.Bridges, SavedBridge{
			Type:        in.Type(),
			InsideID:    in.ID(),
			InsideName:  in.Name(),
			OutsideID:   out.ID(),
			OutsideName: out.Name(),
		})
	}
}

func (io *GroupIONode) Destroy() {
	destroyPorts(io.inside...)
	destroyPorts(io.outside...)
}

// bridge mirrors target's type into a new inside/outside pair and links
// the pair in the direction data flows.
func (io *GroupIONode) bridge(target Port, insideID, outsideID string) (Port, Port, error) {
	b, ok := target.(Bridger)
	if !ok {
		return nil, nil, protocolf("nodes: %s port does not allow bridging", target.Type())
	}
	inside, outside := b.MakeBridge(io.outToIn, io, insideID, io.group, outsideID)
	var linked bool
	if io.outToIn {
		linked = link(outside, inside)
	} else {
		linked = link(inside, outside)
	}
	if !linked {
		return nil, nil, protocolf("nodes: unable to link bridge %s", insideID)
	}
	io.inside = append(io.inside, inside)
	io.outside = append(io.outside, outside)
	return inside, outside, nil
}

// handlePlaceholder creates a bridge for port and wires its inside half to
// port within net.
func (io *GroupIONode) handlePlaceholder(net *Network, port Port) (bool, error) {
	if _, ok := port.(*PlaceholderPort); ok {
		return false, protocolf("nodes: can not bridge a placeholder port")
	}
	inside, outside, err := io.bridge(port, net.GenerateNodeID(), net.GenerateNodeID())
	if err != nil {
		return false, err
	}
	inside.SetName(port.Name())
	outside.SetName(port.Name())

	var ok bool
	if io.outToIn {
		ok, err = net.Connect(inside, port)
	} else {
		ok, err = net.Connect(port, inside)
	}
	if err != nil || !ok {
		io.removeBridgeAt(len(io.inside) - 1)
		return false, err
	}
	logging.L().Debug("nodes: bridged port", "group", io.group.ID(), "type", port.Type(), "name", port.Name())
	return true, nil
}

func (io *GroupIONode) handleConnectTo(net *Network, to Port) (bool, error) {
	return io.handlePlaceholder(net, to)
}

func (io *GroupIONode) handleConnectFrom(net *Network, from Port) (bool, error) {
	return io.handlePlaceholder(net, from)
}

// RemoveBridge drops the i-th bridge and every connection made to either of
// its halves.
func (io *GroupIONode) RemoveBridge(i int) error {
	if i < 0 || i >= len(io.inside) {
		return notFoundf("nodes: no bridge %d on %s", i, io.ID())
	}
	io.group.children.disconnectPort(io.inside[i])
	if io.group.parent != nil {
		io.group.parent.disconnectPort(io.outside[i])
	}
	io.removeBridgeAt(i)
	return nil
}

func (io *GroupIONode) removeBridgeAt(i int) {
	inside, outside := io.inside[i], io.outside[i]
	if io.outToIn {
		unlink(outside, inside)
	} else {
		unlink(inside, outside)
	}
	io.inside = append(io.inside[:i], io.inside[i+1:]...)
	io.outside = append(io.outside[:i], io.outside[i+1:]...)
	destroyPorts(inside, outside)
}

// restoreBridges rebuilds bridges from saved descriptors. Unknown port types
// are logged and skipped.
func (io *GroupIONode) restoreBridges(ctx *Context, bridges []SavedBridge) {
	for _, sb := range bridges {
		var template Port
		switch sb.Type {
		case MidiType, "midi":
			template = NewMidiPort(nil, "", "")
		case SignalType, "signal":
			template = NewSignalPort(nil, "", "", ctx.Engine, nil)
		default:
			logging.L().Warn("nodes: unknown bridge type", "group", io.group.ID(), "type", sb.Type)
			continue
		}
		inside, outside, err := io.bridge(template, sb.InsideID, sb.OutsideID)
		if err != nil {
			logging.L().Warn("nodes: unable to restore bridge", "group", io.group.ID(), "err", err)
			continue
		}
		inside.SetName(sb.InsideName)
		outside.SetName(sb.OutsideName)
	}
}

func groupIOFactory(typeID string, inputs bool) *Factory {
	build := func(net *Network) (*GroupIONode, error) {
		if net.Owner() == nil {
			return nil, topologyf("%s outside of a group", typeID)
		}
		return newGroupIONode(net.Owner(), inputs), nil
	}
	return &Factory{
		TypeID: typeID,
		Hidden: true,
		New: func(net *Network, id string) (Node, error) {
			return build(net)
		},
		Existing: func(net *Network, id string, saved SavedNode) (Node, error) {
			io, err := build(net)
			if err != nil {
				return nil, err
			}
			io.restoreBridges(net.Context(), saved.Bridges)
			return io, nil
		},
	}
}

func groupInputsFactory() *Factory  { return groupIOFactory(GroupInputsTypeID, true) }
func groupOutputsFactory() *Factory { return groupIOFactory(GroupOutputsTypeID, false) }
