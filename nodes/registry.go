package nodes

import (
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/ftag"
)

// Lookup resolves factories by type id.
type Lookup interface {
	Get(typeID string) (*Factory, bool)
	All() []*Factory
}

// Registry is a flat factory table.
type Registry struct {
	factories map[string]*Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]*Factory)}
}

// Register refuses to replace an existing type.
func (r *Registry) Register(f *Factory) error {
	if f == nil || f.TypeID == "" {
		return fault.Wrap(fault.New("nodes: factory without type id"), ftag.With(ftag.InvalidArgument))
	}
	if _, ok := r.factories[f.TypeID]; ok {
		return fault.Wrap(fault.New("nodes: factory "+f.TypeID+" already registered"), ftag.With(ftag.AlreadyExists))
	}
	r.factories[f.TypeID] = f
	return nil
}

func (r *Registry) Get(typeID string) (*Factory, bool) {
	f, ok := r.factories[typeID]
	return f, ok
}

// All is sorted by type id.
func (r *Registry) All() []*Factory {
	out := make([]*Factory, 0, len(r.factories))
	for _, f := range r.factories {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// TransitiveRegistry layers local registrations over a parent lookup.
// Local entries shadow the parent's.
type TransitiveRegistry struct {
	parent Lookup
	local  *Registry
}

func NewTransitiveRegistry(parent Lookup) *TransitiveRegistry {
	return &TransitiveRegistry{parent: parent, local: NewRegistry()}
}

func (t *TransitiveRegistry) Register(f *Factory) error { return t.local.Register(f) }

func (t *TransitiveRegistry) Get(typeID string) (*Factory, bool) {
	if f, ok := t.local.Get(typeID); ok {
		return f, true
	}
	if t.parent == nil {
		return nil, false
	}
	return t.parent.Get(typeID)
}

func (t *TransitiveRegistry) All() []*Factory {
	seen := make(map[string]bool)
	var out []*Factory
	for _, f := range t.local.All() {
		seen[f.TypeID] = true
		out = append(out, f)
	}
	if t.parent != nil {
		for _, f := range t.parent.All() {
			if !seen[f.TypeID] {
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// Builtins returns a fresh registry holding every built-in node type.
func Builtins() *Registry {
	r := NewRegistry()
	for _, f := range []*Factory{
		notesSourceFactory(),
		audioSourceFactory(),
		speakerFactory(),
		gainFactory(),
		constantFactory(),
		adsrFactory(),
		pluckFactory(),
		unpackNoteFactory(),
		sineOscillatorFactory(),
		debugFactory(),
		midiOutFactory(),
		groupFactory(),
		groupInputsFactory(),
		groupOutputsFactory(),
	} {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}
