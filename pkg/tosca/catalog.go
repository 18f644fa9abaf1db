package tosca

import (
	"fmt"
	"sort"
	"strings"
)

// Kind selects one of the type namespaces.
type Kind string

const (
	KindNode         Kind = "node"
	KindCapability   Kind = "capability"
	KindRelationship Kind = "relationship"
	KindGroup        Kind = "group"
)

var kindPrefix = map[Kind]string{
	KindNode:         "tosca.nodes.",
	KindCapability:   "tosca.capabilities.",
	KindRelationship: "tosca.relationships.",
	KindGroup:        "tosca.groups.",
}

// TypeInfo is a resolved type, built in or declared by a document.
type TypeInfo struct {
	Name         string
	Kind         Kind
	Parent       string
	Requirements []string
	Capabilities map[string]string
	Scalars      map[string]ScalarKind
	// CapabilityScalars holds scalar-unit properties declared inline on a
	// node type's capability definitions, keyed by capability name.
	CapabilityScalars map[string]map[string]ScalarKind
	Builtin           bool
	File              string
	Line              int
}

// ChainError reports a derivation chain that does not reach a root type.
type ChainError struct {
	Type   string
	Parent string
	Cycle  bool
}

func (e *ChainError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("type %q is part of a derivation cycle through %q", e.Type, e.Parent)
	}
	return fmt.Sprintf("type %q derives from unknown type %q", e.Type, e.Parent)
}

// Catalog indexes the types visible to a set of documents.
type Catalog struct {
	types    map[Kind]map[string]*TypeInfo
	prefixes map[string]bool
}

// NewCatalog returns a catalog seeded with the normative TOSCA and NFV types.
func NewCatalog() *Catalog {
	c := &Catalog{
		types:    make(map[Kind]map[string]*TypeInfo),
		prefixes: make(map[string]bool),
	}
	for k := range kindPrefix {
		c.types[k] = make(map[string]*TypeInfo)
	}
	for name, b := range builtinNodeTypes {
		c.types[KindNode][name] = &TypeInfo{
			Name:         name,
			Kind:         KindNode,
			Parent:       b.parent,
			Requirements: b.requirements,
			Capabilities: b.capabilities,
			Scalars:      b.scalars,
			Builtin:      true,
		}
	}
	for name, parent := range builtinCapabilityTypes {
		c.types[KindCapability][name] = &TypeInfo{
			Name:    name,
			Kind:    KindCapability,
			Parent:  parent,
			Scalars: builtinCapabilityScalars[name],
			Builtin: true,
		}
	}
	for name, parent := range builtinRelationshipTypes {
		c.types[KindRelationship][name] = &TypeInfo{Name: name, Kind: KindRelationship, Parent: parent, Builtin: true}
	}
	for name, parent := range builtinGroupTypes {
		c.types[KindGroup][name] = &TypeInfo{Name: name, Kind: KindGroup, Parent: parent, Builtin: true}
	}
	return c
}

// AddPrefix registers an import namespace prefix.
func (c *Catalog) AddPrefix(prefix string) {
	if prefix != "" {
		c.prefixes[prefix] = true
	}
}

// Add registers every type a document declares. A declaration replaces a
// built-in type of the same name; the returned list holds declarations that
// collided with a type declared by another document.
func (c *Catalog) Add(st *ServiceTemplate) []*TypeInfo {
	var dups []*TypeInfo
	put := func(info *TypeInfo) {
		if old, ok := c.types[info.Kind][info.Name]; ok && !old.Builtin && old.File != info.File {
			dups = append(dups, info)
			return
		}
		c.types[info.Kind][info.Name] = info
	}

	for _, name := range sortedKeys(st.NodeTypes) {
		nt := st.NodeTypes[name]
		if nt == nil {
			nt = &NodeType{}
		}
		info := &TypeInfo{
			Name:         name,
			Kind:         KindNode,
			Parent:       nt.DerivedFrom,
			Capabilities: make(map[string]string),
			Scalars:      scalarProperties(nt.Properties),
			File:         st.Path,
			Line:         nt.Line,
		}
		for _, r := range nt.Requirements {
			info.Requirements = append(info.Requirements, r.Name)
		}
		for capName, cd := range nt.Capabilities {
			if cd == nil {
				continue
			}
			info.Capabilities[capName] = cd.Type
			if s := scalarProperties(cd.Properties); len(s) > 0 {
				if info.CapabilityScalars == nil {
					info.CapabilityScalars = make(map[string]map[string]ScalarKind)
				}
				info.CapabilityScalars[capName] = s
			}
		}
		put(info)
	}
	addDefs := func(kind Kind, defs map[string]*TypeDefinition) {
		for _, name := range sortedKeys(defs) {
			d := defs[name]
			if d == nil {
				d = &TypeDefinition{}
			}
			put(&TypeInfo{
				Name:    name,
				Kind:    kind,
				Parent:  d.DerivedFrom,
				Scalars: scalarProperties(d.Properties),
				File:    st.Path,
				Line:    d.Line,
			})
		}
	}
	addDefs(KindCapability, st.CapabilityTypes)
	addDefs(KindRelationship, st.RelationshipTypes)
	addDefs(KindGroup, st.GroupTypes)
	return dups
}

// Resolve finds a type by full name, "tosca:"-prefixed or namespace-prefixed
// name, or short name ("Compute" for tosca.nodes.Compute).
func (c *Catalog) Resolve(kind Kind, name string) (*TypeInfo, bool) {
	if name == "" {
		return nil, false
	}
	if t, ok := c.lookup(kind, name); ok {
		return t, true
	}
	if i := strings.IndexByte(name, ':'); i > 0 {
		prefix, rest := name[:i], name[i+1:]
		if prefix == "tosca" || c.prefixes[prefix] {
			return c.lookup(kind, rest)
		}
	}
	return nil, false
}

func (c *Catalog) lookup(kind Kind, name string) (*TypeInfo, bool) {
	types := c.types[kind]
	if t, ok := types[name]; ok {
		return t, true
	}
	if !strings.HasPrefix(name, "tosca.") {
		if t, ok := types[kindPrefix[kind]+name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Chain returns the type followed by its ancestors, root last. A broken chain
// returns the resolved prefix together with a *ChainError.
func (c *Catalog) Chain(kind Kind, name string) ([]*TypeInfo, error) {
	t, ok := c.Resolve(kind, name)
	if !ok {
		return nil, &ChainError{Type: name}
	}
	chain := []*TypeInfo{t}
	seen := map[string]bool{t.Name: true}
	for t.Parent != "" {
		parent, ok := c.Resolve(kind, t.Parent)
		if !ok {
			return chain, &ChainError{Type: t.Name, Parent: t.Parent}
		}
		if seen[parent.Name] {
			return chain, &ChainError{Type: t.Name, Parent: parent.Name, Cycle: true}
		}
		seen[parent.Name] = true
		chain = append(chain, parent)
		t = parent
	}
	return chain, nil
}

// IsA reports whether name is ancestor or derives from it.
func (c *Catalog) IsA(kind Kind, name, ancestor string) bool {
	want, ok := c.Resolve(kind, ancestor)
	if !ok {
		return false
	}
	chain, _ := c.Chain(kind, name)
	for _, t := range chain {
		if t.Name == want.Name {
			return true
		}
	}
	return false
}

// Requirements returns the requirement names a node type declares or inherits.
// complete is false when the derivation chain is broken.
func (c *Catalog) Requirements(nodeType string) (names map[string]bool, complete bool) {
	chain, err := c.Chain(KindNode, nodeType)
	names = make(map[string]bool)
	for _, t := range chain {
		for _, r := range t.Requirements {
			names[r] = true
		}
	}
	return names, err == nil
}

// PropertyScalarKind returns the scalar kind of a node property, if the type
// chain declares it as a scalar-unit.
func (c *Catalog) PropertyScalarKind(nodeType, property string) (ScalarKind, bool) {
	chain, _ := c.Chain(KindNode, nodeType)
	for _, t := range chain {
		if k, ok := t.Scalars[property]; ok {
			return k, true
		}
	}
	return "", false
}

// CapabilityScalarKind returns the scalar kind of a capability property on a
// node type, looking at inline capability definitions first and then at the
// capability type chain.
func (c *Catalog) CapabilityScalarKind(nodeType, capability, property string) (ScalarKind, bool) {
	chain, _ := c.Chain(KindNode, nodeType)
	capType := ""
	for _, t := range chain {
		if k, ok := t.CapabilityScalars[capability][property]; ok {
			return k, true
		}
		if capType == "" {
			capType = t.Capabilities[capability]
		}
	}
	if capType == "" {
		return "", false
	}
	capChain, _ := c.Chain(KindCapability, capType)
	for _, t := range capChain {
		if k, ok := t.Scalars[property]; ok {
			return k, true
		}
	}
	return "", false
}

// Names lists the type names registered for a kind.
func (c *Catalog) Names(kind Kind) []string {
	return sortedKeys(c.types[kind])
}

// Declared returns the types of a kind that came from documents.
func (c *Catalog) Declared(kind Kind) []*TypeInfo {
	var out []*TypeInfo
	for _, name := range sortedKeys(c.types[kind]) {
		if t := c.types[kind][name]; !t.Builtin {
			out = append(out, t)
		}
	}
	return out
}

func scalarProperties(props map[string]*PropertyDefinition) map[string]ScalarKind {
	var out map[string]ScalarKind
	for name, p := range props {
		if p == nil {
			continue
		}
		if k, ok := scalarKindForType(p.Type); ok {
			if out == nil {
				out = make(map[string]ScalarKind)
			}
			out[name] = k
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
