// Package tosca reads TOSCA Simple Profile (and Simple Profile for NFV) service
// templates, resolves their imports and checks type and requirement references.
package tosca

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// Service Template
// ============================================================================

// ServiceTemplate is one TOSCA YAML document.
type ServiceTemplate struct {
	DefinitionsVersion string   `yaml:"tosca_definitions_version"`
	Description        string   `yaml:"description,omitempty"`
	Metadata           Metadata `yaml:"metadata,omitempty"`
	Imports            []Import `yaml:"imports,omitempty"`

	NodeTypes         map[string]*NodeType       `yaml:"node_types,omitempty"`
	CapabilityTypes   map[string]*TypeDefinition `yaml:"capability_types,omitempty"`
	RelationshipTypes map[string]*TypeDefinition `yaml:"relationship_types,omitempty"`
	GroupTypes        map[string]*TypeDefinition `yaml:"group_types,omitempty"`

	TopologyTemplate *TopologyTemplate `yaml:"topology_template,omitempty"`

	// Path is the slash-separated location the document was loaded from.
	Path string `yaml:"-"`
}

// UnmarshalYAML records the source line of every declared type.
func (s *ServiceTemplate) UnmarshalYAML(value *yaml.Node) error {
	type plain ServiceTemplate
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = ServiceTemplate(p)

	forEachSection(value, func(section string, body *yaml.Node) {
		switch section {
		case "node_types":
			forEachKey(body, func(name string, line int) {
				if nt := s.NodeTypes[name]; nt != nil {
					nt.Line = line
				}
			})
		case "capability_types":
			setTypeLines(body, s.CapabilityTypes)
		case "relationship_types":
			setTypeLines(body, s.RelationshipTypes)
		case "group_types":
			setTypeLines(body, s.GroupTypes)
		}
	})
	return nil
}

// Metadata is the document metadata block. Besides the inline template keys it
// may carry an artifacts block that declares digests for out-of-band blobs.
type Metadata struct {
	TemplateName    string                        `yaml:"template_name,omitempty"`
	TemplateAuthor  string                        `yaml:"template_author,omitempty"`
	TemplateVersion string                        `yaml:"template_version,omitempty"`
	Artifacts       map[string]*ArtifactSignature `yaml:"artifacts,omitempty"`
	Extra           map[string]any                `yaml:",inline"`
}

// Get returns a metadata value by key, covering both typed and extra keys.
func (m Metadata) Get(key string) string {
	switch key {
	case "template_name":
		return m.TemplateName
	case "template_author":
		return m.TemplateAuthor
	case "template_version":
		return m.TemplateVersion
	}
	if v, ok := m.Extra[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// ArtifactSignature describes one signed blob shipped next to the template.
type ArtifactSignature struct {
	ContentType string     `yaml:"content-type,omitempty"`
	Signature   *Signature `yaml:"signature,omitempty"`
	Line        int        `yaml:"-"`
}

// UnmarshalYAML records the source line of the entry.
func (a *ArtifactSignature) UnmarshalYAML(value *yaml.Node) error {
	type plain ArtifactSignature
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*a = ArtifactSignature(p)
	a.Line = value.Line
	return nil
}

// Signature is an algorithm plus base64 digest pair.
type Signature struct {
	Algorithm string `yaml:"algorithm"`
	Digest    string `yaml:"digest"`
}

// Import is one entry of the imports list. The short form is a bare file path.
type Import struct {
	Name            string `yaml:"-"`
	File            string `yaml:"file"`
	Repository      string `yaml:"repository,omitempty"`
	NamespacePrefix string `yaml:"namespace_prefix,omitempty"`
	Line            int    `yaml:"-"`
}

// UnmarshalYAML accepts "path", {file: path, ...} and the named form {name: path}.
func (i *Import) UnmarshalYAML(value *yaml.Node) error {
	type plain Import
	switch value.Kind {
	case yaml.ScalarNode:
		*i = Import{File: value.Value, Line: value.Line}
		return nil
	case yaml.MappingNode:
		if mappingHasKey(value, "file") {
			var p plain
			if err := value.Decode(&p); err != nil {
				return err
			}
			*i = Import(p)
			i.Line = value.Line
			return nil
		}
		if len(value.Content) == 2 {
			name, body := value.Content[0], value.Content[1]
			if body.Kind == yaml.ScalarNode {
				*i = Import{Name: name.Value, File: body.Value, Line: value.Line}
				return nil
			}
			var p plain
			if err := body.Decode(&p); err != nil {
				return err
			}
			*i = Import(p)
			i.Name = name.Value
			i.Line = value.Line
			return nil
		}
	}
	return fmt.Errorf("line %d: import must be a file path or a mapping with a file key", value.Line)
}

// ============================================================================
// Type Definitions
// ============================================================================

// PropertyDefinition declares a property in a type's schema or a topology input.
type PropertyDefinition struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	Required    *bool  `yaml:"required,omitempty"`
	Default     any    `yaml:"default,omitempty"`
	Constraints []any  `yaml:"constraints,omitempty"`
	EntrySchema any    `yaml:"entry_schema,omitempty"`
}

// IsRequired reports the effective required flag, which defaults to true.
func (p *PropertyDefinition) IsRequired() bool {
	return p.Required == nil || *p.Required
}

// NodeType is a node type definition.
type NodeType struct {
	DerivedFrom  string                           `yaml:"derived_from,omitempty"`
	Version      string                           `yaml:"version,omitempty"`
	Description  string                           `yaml:"description,omitempty"`
	Properties   map[string]*PropertyDefinition   `yaml:"properties,omitempty"`
	Attributes   map[string]*PropertyDefinition   `yaml:"attributes,omitempty"`
	Capabilities map[string]*CapabilityDefinition `yaml:"capabilities,omitempty"`
	Requirements RequirementDefinitions           `yaml:"requirements,omitempty"`
	Interfaces   map[string]any                   `yaml:"interfaces,omitempty"`
	Artifacts    map[string]*Artifact             `yaml:"artifacts,omitempty"`
	Line         int                              `yaml:"-"`
}

// TypeDefinition covers capability, relationship and group types, which only
// differ in a few keys the checker does not need to distinguish.
type TypeDefinition struct {
	DerivedFrom      string                         `yaml:"derived_from,omitempty"`
	Version          string                         `yaml:"version,omitempty"`
	Description      string                         `yaml:"description,omitempty"`
	Properties       map[string]*PropertyDefinition `yaml:"properties,omitempty"`
	ValidTargetTypes []string                       `yaml:"valid_target_types,omitempty"`
	ValidSourceTypes []string                       `yaml:"valid_source_types,omitempty"`
	Members          []string                       `yaml:"members,omitempty"`
	Line             int                            `yaml:"-"`
}

// CapabilityDefinition declares a capability on a node type. The short form is
// the capability type name.
type CapabilityDefinition struct {
	Type             string                         `yaml:"type"`
	Description      string                         `yaml:"description,omitempty"`
	Properties       map[string]*PropertyDefinition `yaml:"properties,omitempty"`
	ValidSourceTypes []string                       `yaml:"valid_source_types,omitempty"`
	Occurrences      []any                          `yaml:"occurrences,omitempty"`
}

// UnmarshalYAML accepts the short (type name) and extended forms.
func (c *CapabilityDefinition) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*c = CapabilityDefinition{Type: value.Value}
		return nil
	}
	type plain CapabilityDefinition
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = CapabilityDefinition(p)
	return nil
}

// RequirementDefinition declares a requirement on a node type.
type RequirementDefinition struct {
	Name         string
	Capability   string
	Node         string
	Relationship string
	Line         int
}

// RequirementDefinitions is the ordered requirements list of a node type.
type RequirementDefinitions []RequirementDefinition

// UnmarshalYAML decodes a list of single-key mappings.
func (r *RequirementDefinitions) UnmarshalYAML(value *yaml.Node) error {
	return decodeNamedList(value, "requirement definition", func(name string, body *yaml.Node, line int) error {
		def := RequirementDefinition{Name: name, Line: line}
		if body.Kind == yaml.ScalarNode {
			def.Capability = body.Value
			*r = append(*r, def)
			return nil
		}
		var ext struct {
			Capability   string  `yaml:"capability"`
			Node         string  `yaml:"node"`
			Relationship typeRef `yaml:"relationship"`
		}
		if err := body.Decode(&ext); err != nil {
			return err
		}
		def.Capability = ext.Capability
		def.Node = ext.Node
		def.Relationship = string(ext.Relationship)
		*r = append(*r, def)
		return nil
	})
}

// ============================================================================
// Topology Template
// ============================================================================

// TopologyTemplate is the root container of one service description.
type TopologyTemplate struct {
	Description           string                           `yaml:"description,omitempty"`
	Inputs                map[string]*PropertyDefinition   `yaml:"inputs,omitempty"`
	NodeTemplates         map[string]*NodeTemplate         `yaml:"node_templates,omitempty"`
	RelationshipTemplates map[string]*RelationshipTemplate `yaml:"relationship_templates,omitempty"`
	Groups                map[string]*Group                `yaml:"groups,omitempty"`
	Outputs               map[string]*Output               `yaml:"outputs,omitempty"`
	SubstitutionMappings  map[string]any                   `yaml:"substitution_mappings,omitempty"`
}

// UnmarshalYAML records the source line of each node template and group.
func (t *TopologyTemplate) UnmarshalYAML(value *yaml.Node) error {
	type plain TopologyTemplate
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = TopologyTemplate(p)

	forEachSection(value, func(section string, body *yaml.Node) {
		switch section {
		case "node_templates":
			forEachKey(body, func(name string, line int) {
				if nt := t.NodeTemplates[name]; nt != nil {
					nt.Line = line
				}
			})
		case "groups":
			forEachKey(body, func(name string, line int) {
				if g := t.Groups[name]; g != nil {
					g.Line = line
				}
			})
		}
	})
	return nil
}

// NodeTemplate is a named instance of a node type.
type NodeTemplate struct {
	Type         string                           `yaml:"type"`
	Description  string                           `yaml:"description,omitempty"`
	Directives   []string                         `yaml:"directives,omitempty"`
	Metadata     map[string]any                   `yaml:"metadata,omitempty"`
	Properties   map[string]any                   `yaml:"properties,omitempty"`
	Attributes   map[string]any                   `yaml:"attributes,omitempty"`
	Capabilities map[string]*CapabilityAssignment `yaml:"capabilities,omitempty"`
	Requirements RequirementAssignments           `yaml:"requirements,omitempty"`
	Artifacts    map[string]*Artifact             `yaml:"artifacts,omitempty"`
	Interfaces   map[string]*Interface            `yaml:"interfaces,omitempty"`
	Copy         string                           `yaml:"copy,omitempty"`
	Line         int                              `yaml:"-"`
}

// CapabilityAssignment assigns property values to a capability of a node template.
type CapabilityAssignment struct {
	Properties map[string]any `yaml:"properties,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// RequirementAssignment is one entry of a node template's requirements list.
// Node names the target node template (or a node type for abstract requirements).
type RequirementAssignment struct {
	Name         string
	Node         string
	Capability   string
	Relationship string
	Line         int
}

// RequirementAssignments is the ordered requirements list of a node template.
type RequirementAssignments []RequirementAssignment

// UnmarshalYAML decodes "- name: target" and "- name: {node, capability, relationship}".
func (r *RequirementAssignments) UnmarshalYAML(value *yaml.Node) error {
	return decodeNamedList(value, "requirement", func(name string, body *yaml.Node, line int) error {
		req := RequirementAssignment{Name: name, Line: line}
		switch body.Kind {
		case yaml.ScalarNode:
			req.Node = body.Value
		case yaml.MappingNode:
			var ext struct {
				Node         string  `yaml:"node"`
				Capability   string  `yaml:"capability"`
				Relationship typeRef `yaml:"relationship"`
			}
			if err := body.Decode(&ext); err != nil {
				return err
			}
			req.Node = ext.Node
			req.Capability = ext.Capability
			req.Relationship = string(ext.Relationship)
		default:
			return fmt.Errorf("line %d: requirement %q must be a node name or a mapping", body.Line, name)
		}
		*r = append(*r, req)
		return nil
	})
}

// RelationshipTemplate is a named relationship referenced by requirements.
type RelationshipTemplate struct {
	Type       string         `yaml:"type"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// Artifact is an artifact definition. The short form is the file path.
type Artifact struct {
	Type        string `yaml:"type,omitempty"`
	File        string `yaml:"file"`
	Repository  string `yaml:"repository,omitempty"`
	Description string `yaml:"description,omitempty"`
	DeployPath  string `yaml:"deploy_path,omitempty"`
}

// UnmarshalYAML accepts the short and extended artifact forms.
func (a *Artifact) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*a = Artifact{File: value.Value}
		return nil
	case yaml.MappingNode:
		type plain Artifact
		var p plain
		if err := value.Decode(&p); err != nil {
			return err
		}
		*a = Artifact(p)
		return nil
	}
	return fmt.Errorf("line %d: unexpected artifact definition", value.Line)
}

// Interface holds the operations assigned under one interface name.
type Interface struct {
	Type       string
	Inputs     map[string]any
	Operations map[string]*Operation
}

// UnmarshalYAML separates interface-level keys from operations. Both the flat
// form and the TOSCA 1.3 "operations:" nesting are accepted.
func (i *Interface) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: interface must be a mapping", value.Line)
	}
	i.Operations = make(map[string]*Operation)
	for k := 0; k+1 < len(value.Content); k += 2 {
		key, body := value.Content[k].Value, value.Content[k+1]
		switch key {
		case "type":
			i.Type = body.Value
		case "description", "notifications":
		case "inputs":
			if err := body.Decode(&i.Inputs); err != nil {
				return err
			}
		case "operations":
			ops := map[string]*Operation{}
			if err := body.Decode(&ops); err != nil {
				return err
			}
			for name, op := range ops {
				i.Operations[name] = op
			}
		default:
			op := &Operation{}
			if err := body.Decode(op); err != nil {
				return err
			}
			i.Operations[key] = op
		}
	}
	return nil
}

// Operation is an interface operation. The short form is the implementation path.
type Operation struct {
	Implementation string
	Dependencies   []string
	Inputs         map[string]any
}

// UnmarshalYAML accepts "path", {implementation: path} and
// {implementation: {primary: path, dependencies: [...]}}.
func (o *Operation) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*o = Operation{Implementation: value.Value}
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: operation must be a path or a mapping", value.Line)
	}
	var raw struct {
		Implementation yaml.Node      `yaml:"implementation"`
		Inputs         map[string]any `yaml:"inputs"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	o.Inputs = raw.Inputs
	switch raw.Implementation.Kind {
	case yaml.ScalarNode:
		o.Implementation = raw.Implementation.Value
	case yaml.MappingNode:
		var impl struct {
			Primary      string   `yaml:"primary"`
			Dependencies []string `yaml:"dependencies"`
		}
		if err := raw.Implementation.Decode(&impl); err != nil {
			return err
		}
		o.Implementation = impl.Primary
		o.Dependencies = impl.Dependencies
	}
	return nil
}

// Group is a named collection of node templates.
type Group struct {
	Type        string         `yaml:"type"`
	Description string         `yaml:"description,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
	Properties  map[string]any `yaml:"properties,omitempty"`
	Members     []string       `yaml:"members,omitempty"`
	Line        int            `yaml:"-"`
}

// Output is a topology output.
type Output struct {
	Description string `yaml:"description,omitempty"`
	Value       any    `yaml:"value"`
}

// ============================================================================
// YAML helpers
// ============================================================================

// typeRef decodes either a bare type name or {type: name}.
type typeRef string

func (t *typeRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*t = typeRef(value.Value)
		return nil
	case yaml.MappingNode:
		var ext struct {
			Type string `yaml:"type"`
		}
		if err := value.Decode(&ext); err != nil {
			return err
		}
		*t = typeRef(ext.Type)
		return nil
	}
	return fmt.Errorf("line %d: expected a type name", value.Line)
}

// decodeNamedList walks a sequence of single-key mappings.
func decodeNamedList(value *yaml.Node, what string, fn func(name string, body *yaml.Node, line int) error) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: %ss must be a list", value.Line, what)
	}
	for _, item := range value.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return fmt.Errorf("line %d: each %s must be a single-key mapping", item.Line, what)
		}
		key := item.Content[0]
		if err := fn(key.Value, item.Content[1], key.Line); err != nil {
			return err
		}
	}
	return nil
}

func forEachSection(mapping *yaml.Node, fn func(section string, body *yaml.Node)) {
	if mapping.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		fn(mapping.Content[i].Value, mapping.Content[i+1])
	}
}

func forEachKey(mapping *yaml.Node, fn func(name string, line int)) {
	if mapping.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		fn(key.Value, key.Line)
	}
}

func setTypeLines(body *yaml.Node, defs map[string]*TypeDefinition) {
	forEachKey(body, func(name string, line int) {
		if d := defs[name]; d != nil {
			d.Line = line
		}
	})
}

func mappingHasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}
