package tosca

import "strings"

// Reference is a file a template points at outside the YAML itself.
type Reference struct {
	// Path locates the reference inside the document.
	Path string `json:"path"`
	// Target is the referenced file or URL as written.
	Target string `json:"target"`
	Line   int    `json:"line,omitempty"`
}

// IsURL reports whether the target is a remote location.
func (r Reference) IsURL() bool {
	return strings.Contains(r.Target, "://")
}

// ExternalReferences lists the artifact files and operation implementations
// a document refers to, in document order of node templates.
func (st *ServiceTemplate) ExternalReferences() []Reference {
	var refs []Reference
	add := func(p, target string, line int) {
		if target != "" {
			refs = append(refs, Reference{Path: p, Target: target, Line: line})
		}
	}

	for _, name := range sortedKeys(st.NodeTypes) {
		nt := st.NodeTypes[name]
		if nt == nil {
			continue
		}
		for _, a := range sortedKeys(nt.Artifacts) {
			if art := nt.Artifacts[a]; art != nil && art.Repository == "" {
				add("node_types."+name+".artifacts."+a, art.File, nt.Line)
			}
		}
	}

	if st.TopologyTemplate == nil {
		return refs
	}
	for _, name := range sortedKeys(st.TopologyTemplate.NodeTemplates) {
		nt := st.TopologyTemplate.NodeTemplates[name]
		if nt == nil {
			continue
		}
		p := "topology_template.node_templates." + name
		for _, a := range sortedKeys(nt.Artifacts) {
			if art := nt.Artifacts[a]; art != nil && art.Repository == "" {
				add(p+".artifacts."+a, art.File, nt.Line)
			}
		}
		for _, ifName := range sortedKeys(nt.Interfaces) {
			iface := nt.Interfaces[ifName]
			if iface == nil {
				continue
			}
			for _, opName := range sortedKeys(iface.Operations) {
				op := iface.Operations[opName]
				if op == nil {
					continue
				}
				opPath := p + ".interfaces." + ifName + "." + opName
				if _, isArtifact := nt.Artifacts[op.Implementation]; !isArtifact {
					add(opPath+".implementation", op.Implementation, nt.Line)
				}
				for _, dep := range op.Dependencies {
					add(opPath+".dependencies", dep, nt.Line)
				}
			}
		}
	}
	return refs
}
