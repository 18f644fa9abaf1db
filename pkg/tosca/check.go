package tosca

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nfvpack/nfvpack/pkg/signature"
	"github.com/nfvpack/nfvpack/pkg/util"
)

// CheckOptions tunes Check.
type CheckOptions struct {
	// Strict reports every warning as an error.
	Strict bool
	// Ignore drops issues with these codes.
	Ignore []string
}

// Function targets that do not name a node template.
var functionKeywords = map[string]bool{
	"SELF":   true,
	"SOURCE": true,
	"TARGET": true,
	"HOST":   true,
}

// VNFFG group properties whose entries name node templates.
var vnffgMemberProperties = []string{"constituent_vnfs", "connection_point", "dependent_virtual_link"}

type checker struct {
	defs *Definitions
	cat  *Catalog
	r    *Report
}

// Check cross-references the loaded documents and returns every issue found,
// import problems from loading included.
func Check(defs *Definitions, opts CheckOptions) *Report {
	r := NewReport(defs.Entry.Path)
	for _, i := range defs.Issues {
		r.Add(i)
	}

	cat := NewCatalog()
	for _, p := range defs.Prefixes {
		cat.AddPrefix(p)
	}
	for _, name := range defs.Order {
		for _, dup := range cat.Add(defs.Templates[name]) {
			r.Warnf(CodeDuplicateType, dup.File, typeSection(dup.Kind)+"."+dup.Name, dup.Line,
				"%s type %q is declared more than once", dup.Kind, dup.Name)
		}
	}

	c := &checker{defs: defs, cat: cat, r: r}
	for _, name := range defs.Order {
		st := defs.Templates[name]
		c.checkVersion(st)
		c.checkArtifactSignatures(st)
		c.checkTopology(st)
	}
	c.checkTypeChains()
	if defs.Entry.TopologyTemplate == nil {
		r.Warnf(CodeMissingTopology, defs.Entry.Path, "", 0, "entry template has no topology_template")
	}

	r.Finalize(opts)

	util.WithTemplate(defs.Entry.Path).Debugf("Checked %d documents: %d errors, %d warnings",
		len(defs.Order), len(r.Errors()), len(r.Warnings()))
	return r
}

func (c *checker) checkVersion(st *ServiceTemplate) {
	switch {
	case st.DefinitionsVersion == "":
		c.r.Errorf(CodeMissingVersion, st.Path, "tosca_definitions_version", 0,
			"tosca_definitions_version is missing")
	case !definitionsVersions[st.DefinitionsVersion]:
		c.r.Errorf(CodeUnknownVersion, st.Path, "tosca_definitions_version", 0,
			"tosca_definitions_version %q is not recognized (want one of %s)",
			st.DefinitionsVersion, strings.Join(DefinitionsVersions(), ", "))
	}
}

func (c *checker) checkTypeChains() {
	for _, kind := range []Kind{KindNode, KindCapability, KindRelationship, KindGroup} {
		for _, t := range c.cat.Declared(kind) {
			_, err := c.cat.Chain(kind, t.Name)
			var ce *ChainError
			if !errors.As(err, &ce) {
				continue
			}
			p := typeSection(kind) + "." + t.Name
			if ce.Cycle {
				c.r.Errorf(CodeTypeCycle, t.File, p, t.Line, "%v", ce)
			} else {
				c.r.Errorf(CodeUnknownParentType, t.File, p, t.Line, "%v", ce)
			}
		}
	}
}

// checkArtifactSignatures validates the metadata.artifacts block shape. Digests
// are compared with content only when the blobs are available (see pkg/csar).
func (c *checker) checkArtifactSignatures(st *ServiceTemplate) {
	for _, name := range sortedKeys(st.Metadata.Artifacts) {
		a := st.Metadata.Artifacts[name]
		p := "metadata.artifacts." + name
		if a == nil {
			c.r.Errorf(CodeInvalidSignature, st.Path, p, 0, "artifact entry is empty")
			continue
		}
		if a.ContentType == "" {
			c.r.Warnf(CodeMissingContentType, st.Path, p, a.Line, "artifact has no content-type")
		}
		if a.Signature == nil {
			c.r.Errorf(CodeInvalidSignature, st.Path, p, a.Line, "artifact has no signature")
			continue
		}
		err := signature.CheckDeclared(a.Signature.Algorithm, a.Signature.Digest)
		switch {
		case errors.Is(err, signature.ErrUnknownAlgorithm):
			c.r.Warnf(CodeUnknownDigestAlgorithm, st.Path, p+".signature.algorithm", a.Line,
				"digest algorithm %q is not known; the digest cannot be verified", a.Signature.Algorithm)
		case err != nil:
			c.r.Errorf(CodeInvalidSignature, st.Path, p+".signature", a.Line, "%v", err)
		}
	}
}

func (c *checker) checkTopology(st *ServiceTemplate) {
	tt := st.TopologyTemplate
	if tt == nil {
		return
	}
	for _, name := range sortedKeys(tt.NodeTemplates) {
		nt := tt.NodeTemplates[name]
		if nt == nil {
			c.r.Errorf(CodeUnknownType, st.Path, "topology_template.node_templates."+name, 0,
				"node template %q is empty", name)
			continue
		}
		c.checkNodeTemplate(st, name, nt)
	}
	for _, name := range sortedKeys(tt.Groups) {
		g := tt.Groups[name]
		if g == nil {
			continue
		}
		c.checkGroup(st, name, g)
	}
	for _, name := range sortedKeys(tt.Outputs) {
		if out := tt.Outputs[name]; out != nil {
			c.checkFunctions(st, "topology_template.outputs."+name+".value", 0, out.Value)
		}
	}
}

func (c *checker) checkNodeTemplate(st *ServiceTemplate, name string, nt *NodeTemplate) {
	tt := st.TopologyTemplate
	p := "topology_template.node_templates." + name

	typeName := nt.Type
	if nt.Copy != "" {
		src, ok := tt.NodeTemplates[nt.Copy]
		switch {
		case !ok || src == nil:
			c.r.Errorf(CodeUnresolvedCopy, st.Path, p+".copy", nt.Line,
				"node template %q copies %q, which is not a node template", name, nt.Copy)
		case typeName == "":
			typeName = src.Type
		}
	}

	typeKnown := false
	switch {
	case typeName == "" && nt.Copy == "":
		c.r.Errorf(CodeUnknownType, st.Path, p+".type", nt.Line, "node template %q has no type", name)
	case typeName != "":
		if _, ok := c.cat.Resolve(KindNode, typeName); ok {
			typeKnown = true
		} else {
			c.r.Errorf(CodeUnknownType, st.Path, p+".type", nt.Line,
				"node template %q has type %q, which is neither built in, imported nor declared", name, typeName)
		}
	}

	for _, req := range nt.Requirements {
		c.checkRequirement(st, name, typeName, typeKnown, req)
	}

	for _, prop := range sortedKeys(nt.Properties) {
		var kind ScalarKind
		declared := false
		if typeKnown {
			kind, declared = c.cat.PropertyScalarKind(typeName, prop)
		}
		if !declared && strings.HasSuffix(prop, "_size") {
			kind = ScalarSize
		}
		c.checkScalar(st, p+".properties."+prop, nt.Line, kind, declared, nt.Properties[prop])
	}

	for _, capName := range sortedKeys(nt.Capabilities) {
		ca := nt.Capabilities[capName]
		if ca == nil {
			continue
		}
		for _, prop := range sortedKeys(ca.Properties) {
			var kind ScalarKind
			declared := false
			if typeKnown {
				kind, declared = c.cat.CapabilityScalarKind(typeName, capName, prop)
			}
			if !declared && strings.HasSuffix(prop, "_size") {
				kind = ScalarSize
			}
			c.checkScalar(st, p+".capabilities."+capName+".properties."+prop, nt.Line, kind, declared, ca.Properties[prop])
		}
		c.checkFunctions(st, p+".capabilities."+capName, nt.Line, ca.Attributes)
	}

	c.checkFunctions(st, p+".attributes", nt.Line, nt.Attributes)
	for _, ifName := range sortedKeys(nt.Interfaces) {
		iface := nt.Interfaces[ifName]
		if iface == nil {
			continue
		}
		ip := p + ".interfaces." + ifName
		c.checkFunctions(st, ip+".inputs", nt.Line, iface.Inputs)
		for _, opName := range sortedKeys(iface.Operations) {
			if op := iface.Operations[opName]; op != nil {
				c.checkFunctions(st, ip+"."+opName+".inputs", nt.Line, op.Inputs)
			}
		}
	}
}

func (c *checker) checkRequirement(st *ServiceTemplate, owner, typeName string, typeKnown bool, req RequirementAssignment) {
	tt := st.TopologyTemplate
	p := "topology_template.node_templates." + owner + ".requirements." + req.Name

	if typeKnown {
		names, complete := c.cat.Requirements(typeName)
		if complete && !names[req.Name] {
			c.r.Warnf(CodeUnknownRequirement, st.Path, p, req.Line,
				"requirement %q is not defined by type %q or its parents", req.Name, typeName)
		}
	}

	var target *NodeTemplate
	switch {
	case req.Node == "":
		if req.Capability == "" {
			c.r.Errorf(CodeUnresolvedRequirement, st.Path, p, req.Line,
				"requirement %q of %q names neither a node nor a capability", req.Name, owner)
		}
	case tt.NodeTemplates[req.Node] != nil:
		target = tt.NodeTemplates[req.Node]
		if req.Node == owner {
			c.r.Warnf(CodeSelfRequirement, st.Path, p, req.Line,
				"node template %q requires itself", owner)
		}
	default:
		if _, ok := c.cat.Resolve(KindNode, req.Node); !ok {
			c.r.Errorf(CodeUnresolvedRequirement, st.Path, p, req.Line,
				"requirement %q of %q targets %q, which is neither a node template nor a known node type",
				req.Name, owner, req.Node)
		}
	}

	if req.Capability != "" && !c.capabilityResolves(req.Capability, target) {
		c.r.Warnf(CodeUnknownCapabilityType, st.Path, p+".capability", req.Line,
			"capability %q is neither a known capability type nor a capability of the target", req.Capability)
	}
	if req.Relationship != "" {
		_, known := c.cat.Resolve(KindRelationship, req.Relationship)
		if !known && tt.RelationshipTemplates[req.Relationship] == nil {
			c.r.Warnf(CodeUnknownRelationshipType, st.Path, p+".relationship", req.Line,
				"relationship %q is neither a known relationship type nor a relationship template", req.Relationship)
		}
	}
}

func (c *checker) capabilityResolves(capability string, target *NodeTemplate) bool {
	if _, ok := c.cat.Resolve(KindCapability, capability); ok {
		return true
	}
	if target == nil {
		return false
	}
	chain, _ := c.cat.Chain(KindNode, target.Type)
	for _, t := range chain {
		if _, ok := t.Capabilities[capability]; ok {
			return true
		}
	}
	return false
}

// checkScalar validates a scalar-unit property value. Values the type chain
// declares as scalar-units must parse; values only matched by name must parse
// when they are strings.
func (c *checker) checkScalar(st *ServiceTemplate, p string, line int, kind ScalarKind, declared bool, value any) {
	if isFunction(value) {
		c.checkFunctions(st, p, line, value)
		return
	}
	if kind == "" {
		c.checkFunctions(st, p, line, value)
		return
	}
	switch v := value.(type) {
	case nil:
	case string:
		if _, err := ParseScalarUnit(v, kind); err != nil {
			c.r.Errorf(CodeInvalidScalarUnit, st.Path, p, line, "%v", err)
		}
	default:
		msg := fmt.Sprintf("%v is not of the form <number> <unit> (want a %s unit such as %s)",
			v, kind, strings.Join(Units(kind), ", "))
		if declared {
			c.r.Errorf(CodeInvalidScalarUnit, st.Path, p, line, "%s", msg)
		} else {
			c.r.Warnf(CodeInvalidScalarUnit, st.Path, p, line, "%s", msg)
		}
	}
}

func (c *checker) checkGroup(st *ServiceTemplate, name string, g *Group) {
	tt := st.TopologyTemplate
	p := "topology_template.groups." + name

	if g.Type == "" {
		c.r.Errorf(CodeUnknownType, st.Path, p+".type", g.Line, "group %q has no type", name)
	} else if _, ok := c.cat.Resolve(KindGroup, g.Type); !ok {
		c.r.Errorf(CodeUnknownType, st.Path, p+".type", g.Line,
			"group %q has type %q, which is neither built in, imported nor declared", name, g.Type)
	}

	for _, m := range g.Members {
		if tt.NodeTemplates[m] == nil {
			c.r.Errorf(CodeUnresolvedGroupMember, st.Path, p+".members", g.Line,
				"group %q lists member %q, which is not a node template", name, m)
		}
	}

	if !c.cat.IsA(KindGroup, g.Type, vnffgGroupType) {
		c.checkFunctions(st, p+".properties", g.Line, g.Properties)
		return
	}
	for _, prop := range vnffgMemberProperties {
		for _, ref := range stringList(g.Properties[prop]) {
			if tt.NodeTemplates[ref] == nil {
				c.r.Errorf(CodeUnresolvedGroupMember, st.Path, p+".properties."+prop, g.Line,
					"group %q property %s names %q, which is not a node template", name, prop, ref)
			}
		}
	}
	if n, ok := asInt(g.Properties["number_of_endpoints"]); ok {
		cps := stringList(g.Properties["connection_point"])
		if n != len(cps) {
			c.r.Warnf(CodeEndpointCountMismatch, st.Path, p+".properties.number_of_endpoints", g.Line,
				"number_of_endpoints is %d but %d connection points are listed", n, len(cps))
		}
	}
}

// checkFunctions walks a value and validates intrinsic function references.
func (c *checker) checkFunctions(st *ServiceTemplate, p string, line int, value any) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 1 {
			for fn, arg := range v {
				if c.checkFunction(st, p, line, fn, arg) {
					return
				}
			}
		}
		for _, k := range sortedKeys(v) {
			c.checkFunctions(st, p+"."+k, line, v[k])
		}
	case []any:
		for i, item := range v {
			c.checkFunctions(st, fmt.Sprintf("%s[%d]", p, i), line, item)
		}
	}
}

// checkFunction validates one function call and reports whether fn was a
// function name.
func (c *checker) checkFunction(st *ServiceTemplate, p string, line int, fn string, arg any) bool {
	tt := st.TopologyTemplate
	switch fn {
	case "get_input":
		name, ok := arg.(string)
		if !ok {
			if args := anyList(arg); len(args) > 0 {
				name, _ = args[0].(string)
			}
		}
		if _, declared := tt.Inputs[name]; name != "" && !declared {
			c.r.Errorf(CodeUnresolvedInput, st.Path, p, line, "get_input references undeclared input %q", name)
		}
		return true
	case "get_property", "get_attribute", "get_operation_output", "get_artifact":
		args := anyList(arg)
		if len(args) == 0 {
			return true
		}
		entity, _ := args[0].(string)
		if entity == "" || functionKeywords[entity] {
			return true
		}
		if tt.NodeTemplates[entity] == nil && tt.RelationshipTemplates[entity] == nil && tt.Groups[entity] == nil {
			c.r.Errorf(CodeUnresolvedFunction, st.Path, p, line,
				"%s references %q, which is not a template or one of SELF, SOURCE, TARGET, HOST", fn, entity)
		}
		return true
	case "concat", "join", "token":
		c.checkFunctions(st, p+"."+fn, line, arg)
		return true
	}
	return false
}

func isFunction(value any) bool {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	for k := range m {
		return strings.HasPrefix(k, "get_") || k == "concat" || k == "join" || k == "token"
	}
	return false
}

func typeSection(kind Kind) string {
	switch kind {
	case KindCapability:
		return "capability_types"
	case KindRelationship:
		return "relationship_types"
	case KindGroup:
		return "group_types"
	}
	return "node_types"
}

func anyList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{l}
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
