package tosca

import (
	"errors"
	"testing"
)

func TestCatalog_Resolve(t *testing.T) {
	c := NewCatalog()
	c.AddPrefix("ex")

	tests := []struct {
		kind   Kind
		name   string
		want   string
		wantOK bool
	}{
		{KindNode, "tosca.nodes.Compute", "tosca.nodes.Compute", true},
		{KindNode, "Compute", "tosca.nodes.Compute", true},
		{KindNode, "tosca:Compute", "tosca.nodes.Compute", true},
		{KindNode, "nfv.VDU", "tosca.nodes.nfv.VDU", true},
		{KindNode, "tosca.nodes.nfv.VL.ELAN", "tosca.nodes.nfv.VL.ELAN", true},
		{KindCapability, "Container", "tosca.capabilities.Container", true},
		{KindRelationship, "nfv.VirtualLinksTo", "tosca.relationships.nfv.VirtualLinksTo", true},
		{KindGroup, "nfv.VNFFG", "tosca.groups.nfv.VNFFG", true},
		{KindNode, "ex:Compute", "tosca.nodes.Compute", true},
		{KindNode, "other:Compute", "", false},
		{KindNode, "Server", "", false},
		{KindNode, "", "", false},
		{KindGroup, "Compute", "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.name, func(t *testing.T) {
			got, ok := c.Resolve(tt.kind, tt.name)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%s, %q) ok = %v, want %v", tt.kind, tt.name, ok, tt.wantOK)
			}
			if ok && got.Name != tt.want {
				t.Errorf("Resolve(%s, %q) = %q, want %q", tt.kind, tt.name, got.Name, tt.want)
			}
		})
	}
}

func TestCatalog_Add(t *testing.T) {
	st, err := Parse([]byte(`
tosca_definitions_version: tosca_simple_yaml_1_3
node_types:
  example.nodes.Probe:
    derived_from: tosca.nodes.nfv.VDU
    properties:
      buffer:
        type: scalar-unit.size
    capabilities:
      sampling:
        type: tosca.capabilities.Root
        properties:
          interval:
            type: scalar-unit.time
    requirements:
      - collector: tosca.capabilities.Endpoint
capability_types:
  example.capabilities.Telemetry:
    derived_from: tosca.capabilities.Endpoint
    properties:
      rate:
        type: scalar-unit.frequency
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	st.Path = "probe.yaml"

	c := NewCatalog()
	if dups := c.Add(st); len(dups) != 0 {
		t.Fatalf("Add() dups = %v, want none", dups)
	}

	probe, ok := c.Resolve(KindNode, "example.nodes.Probe")
	if !ok {
		t.Fatal("declared node type not resolvable")
	}
	if probe.Builtin || probe.File != "probe.yaml" || probe.Line != 4 {
		t.Errorf("probe = %+v", probe)
	}

	reqs, complete := c.Requirements("example.nodes.Probe")
	if !complete {
		t.Error("Requirements() chain reported incomplete")
	}
	for _, name := range []string{"collector", "high_availability", "local_storage", "dependency"} {
		if !reqs[name] {
			t.Errorf("requirement %q not inherited", name)
		}
	}

	if k, ok := c.PropertyScalarKind("example.nodes.Probe", "buffer"); !ok || k != ScalarSize {
		t.Errorf("PropertyScalarKind(buffer) = %q, %v", k, ok)
	}
	if k, ok := c.CapabilityScalarKind("example.nodes.Probe", "sampling", "interval"); !ok || k != ScalarTime {
		t.Errorf("CapabilityScalarKind(sampling.interval) = %q, %v", k, ok)
	}
	if k, ok := c.CapabilityScalarKind("example.nodes.Probe", "host", "mem_size"); !ok || k != ScalarSize {
		t.Errorf("CapabilityScalarKind(host.mem_size) = %q, %v", k, ok)
	}
	if _, ok := c.CapabilityScalarKind("example.nodes.Probe", "host", "num_cpus"); ok {
		t.Error("num_cpus reported as scalar-unit")
	}

	if !c.IsA(KindNode, "example.nodes.Probe", "tosca.nodes.Compute") {
		t.Error("Probe should derive from Compute")
	}
	if c.IsA(KindNode, "example.nodes.Probe", "tosca.nodes.nfv.CP") {
		t.Error("Probe should not derive from CP")
	}

	declared := c.Declared(KindCapability)
	if len(declared) != 1 || declared[0].Name != "example.capabilities.Telemetry" {
		t.Errorf("Declared(capability) = %v", declared)
	}
	if declared[0].Scalars["rate"] != ScalarFrequency {
		t.Errorf("Telemetry rate scalar = %q", declared[0].Scalars["rate"])
	}
}

func TestCatalog_AddDuplicates(t *testing.T) {
	doc := []byte(`
tosca_definitions_version: tosca_simple_yaml_1_3
node_types:
  tosca.nodes.Compute:
    derived_from: tosca.nodes.Root
  example.nodes.App:
    derived_from: tosca.nodes.Root
`)
	first, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	first.Path = "a.yaml"
	second, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	second.Path = "b.yaml"

	c := NewCatalog()
	if dups := c.Add(first); len(dups) != 0 {
		t.Errorf("overriding a built-in type reported %d duplicates", len(dups))
	}
	dups := c.Add(second)
	if len(dups) != 2 {
		t.Fatalf("len(dups) = %d, want 2", len(dups))
	}
	if dups[0].File != "b.yaml" {
		t.Errorf("duplicate File = %q, want b.yaml", dups[0].File)
	}
}

func TestCatalog_Chain(t *testing.T) {
	st, err := Parse([]byte(`
tosca_definitions_version: tosca_simple_yaml_1_3
node_types:
  example.A:
    derived_from: example.B
  example.B:
    derived_from: example.A
  example.Orphan:
    derived_from: example.Missing
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	c := NewCatalog()
	c.Add(st)

	chain, err := c.Chain(KindNode, "nfv.VDU")
	if err != nil {
		t.Fatalf("Chain(VDU) error = %v", err)
	}
	var names []string
	for _, ti := range chain {
		names = append(names, ti.Name)
	}
	want := []string{"tosca.nodes.nfv.VDU", "tosca.nodes.Compute", "tosca.nodes.Root"}
	if len(names) != len(want) {
		t.Fatalf("Chain(VDU) = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Chain(VDU)[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	_, err = c.Chain(KindNode, "example.A")
	var ce *ChainError
	if !errors.As(err, &ce) || !ce.Cycle {
		t.Errorf("Chain(example.A) error = %v, want cycle", err)
	}

	_, err = c.Chain(KindNode, "example.Orphan")
	if !errors.As(err, &ce) || ce.Cycle || ce.Parent != "example.Missing" {
		t.Errorf("Chain(example.Orphan) error = %v, want unknown parent", err)
	}
	if _, complete := c.Requirements("example.Orphan"); complete {
		t.Error("Requirements(example.Orphan) reported a complete chain")
	}
}
