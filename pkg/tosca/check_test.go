package tosca

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/nfvpack/nfvpack/pkg/util"
)

func checkDoc(t *testing.T, doc string, opts CheckOptions) *Report {
	t.Helper()
	defs, err := NewLoader(fstest.MapFS{}).LoadBytes("main.yaml", []byte(doc))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	return Check(defs, opts)
}

func findIssue(r *Report, code, pathPrefix string) *Issue {
	for i := range r.Issues {
		if r.Issues[i].Code == code && strings.HasPrefix(r.Issues[i].Path, pathPrefix) {
			return &r.Issues[i]
		}
	}
	return nil
}

func TestCheck_ValidVNFFG(t *testing.T) {
	defs, err := LoadFile(filepath.Join("testdata", "vnffg", "tosca-vnffg.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	r := Check(defs, CheckOptions{Strict: true})
	if len(r.Issues) != 0 {
		for _, i := range r.Issues {
			t.Errorf("unexpected issue: %s", i)
		}
	}
	if !r.OK() {
		t.Error("OK() = false")
	}
	if err := r.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestCheck_Broken(t *testing.T) {
	r, err := CheckFile(filepath.Join("testdata", "broken.yaml"), CheckOptions{})
	if err != nil {
		t.Fatalf("CheckFile() error = %v", err)
	}

	tests := []struct {
		code     string
		path     string
		severity Severity
	}{
		{CodeInvalidSignature, "metadata.artifacts.images/bad.img.signature", SeverityError},
		{CodeMissingContentType, "metadata.artifacts.images/bad.img", SeverityWarning},
		{CodeUnknownDigestAlgorithm, "metadata.artifacts.images/odd.img", SeverityWarning},
		{CodeInvalidScalarUnit, "topology_template.node_templates.server.capabilities.host.properties.mem_size", SeverityError},
		{CodeUnresolvedRequirement, "topology_template.node_templates.server.requirements.local_storage", SeverityError},
		{CodeUnknownType, "topology_template.node_templates.app.type", SeverityError},
		{CodeUnresolvedGroupMember, "topology_template.groups.grp.members", SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			issue := findIssue(r, tt.code, tt.path)
			if issue == nil {
				t.Fatalf("no %s issue at %s; got:\n%v", tt.code, tt.path, r.Issues)
			}
			if issue.Severity != tt.severity {
				t.Errorf("severity = %s, want %s", issue.Severity, tt.severity)
			}
			if issue.File != filepath.Join("testdata", "broken.yaml") {
				t.Errorf("File = %q", issue.File)
			}
		})
	}

	if len(r.Issues) != len(tests) {
		t.Errorf("len(Issues) = %d, want %d: %v", len(r.Issues), len(tests), r.Issues)
	}
	if got := len(r.Unresolved()); got != 3 {
		t.Errorf("len(Unresolved()) = %d, want 3", got)
	}

	err = r.Err()
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Fatalf("Err() = %v, want ErrValidationFailed", err)
	}
	var ve *util.ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) != 5 {
		t.Errorf("ValidationError = %v, want 5 errors", err)
	}
}

func TestCheck_Options(t *testing.T) {
	doc := `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    vm:
      type: tosca.nodes.Compute
      requirements:
        - uplink: vm
`
	r := checkDoc(t, doc, CheckOptions{})
	if r.HasErrors() {
		t.Errorf("default options produced errors: %v", r.Errors())
	}
	if len(r.Warnings()) != 2 {
		t.Errorf("len(Warnings()) = %d, want 2: %v", len(r.Warnings()), r.Issues)
	}

	strict := checkDoc(t, doc, CheckOptions{Strict: true})
	if len(strict.Errors()) != 2 {
		t.Errorf("strict len(Errors()) = %d, want 2", len(strict.Errors()))
	}

	ignored := checkDoc(t, doc, CheckOptions{Strict: true, Ignore: []string{CodeSelfRequirement, CodeUnknownRequirement}})
	if len(ignored.Issues) != 0 {
		t.Errorf("ignored issues = %v, want none", ignored.Issues)
	}
}

func TestCheck_Rules(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantCode string
		wantPath string
		severity Severity
	}{
		{
			name:     "missing definitions version",
			doc:      "description: nothing\n",
			wantCode: CodeMissingVersion,
			wantPath: "tosca_definitions_version",
			severity: SeverityError,
		},
		{
			name:     "unknown definitions version",
			doc:      "tosca_definitions_version: tosca_simple_yaml_9_9\n",
			wantCode: CodeUnknownVersion,
			wantPath: "tosca_definitions_version",
			severity: SeverityError,
		},
		{
			name:     "no topology template",
			doc:      "tosca_definitions_version: tosca_simple_yaml_1_3\n",
			wantCode: CodeMissingTopology,
			severity: SeverityWarning,
		},
		{
			name: "unknown parent type",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
node_types:
  example.nodes.Orphan:
    derived_from: example.nodes.Ghost
`,
			wantCode: CodeUnknownParentType,
			wantPath: "node_types.example.nodes.Orphan",
			severity: SeverityError,
		},
		{
			name: "type cycle",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
group_types:
  example.groups.A:
    derived_from: example.groups.B
  example.groups.B:
    derived_from: example.groups.A
`,
			wantCode: CodeTypeCycle,
			wantPath: "group_types.example.groups.A",
			severity: SeverityError,
		},
		{
			name: "node template without type",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    vm:
      properties:
        name: x
`,
			wantCode: CodeUnknownType,
			wantPath: "topology_template.node_templates.vm.type",
			severity: SeverityError,
		},
		{
			name: "requirement targets node type",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    app:
      type: tosca.nodes.SoftwareComponent
      requirements:
        - host: tosca.nodes.Compute
    bad:
      type: tosca.nodes.SoftwareComponent
      requirements:
        - host: tosca.nodes.Mainframe
`,
			wantCode: CodeUnresolvedRequirement,
			wantPath: "topology_template.node_templates.bad.requirements.host",
			severity: SeverityError,
		},
		{
			name: "unknown capability",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    db:
      type: tosca.nodes.DBMS
    app:
      type: tosca.nodes.Database
      requirements:
        - host:
            node: db
            capability: warp_drive
`,
			wantCode: CodeUnknownCapabilityType,
			wantPath: "topology_template.node_templates.app.requirements.host.capability",
			severity: SeverityWarning,
		},
		{
			name: "unknown relationship",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    db:
      type: tosca.nodes.DBMS
    app:
      type: tosca.nodes.Database
      requirements:
        - host:
            node: db
            relationship: example.relationships.Tunnel
`,
			wantCode: CodeUnknownRelationshipType,
			wantPath: "topology_template.node_templates.app.requirements.host.relationship",
			severity: SeverityWarning,
		},
		{
			name: "copy of unknown template",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    vm2:
      copy: vm1
`,
			wantCode: CodeUnresolvedCopy,
			wantPath: "topology_template.node_templates.vm2.copy",
			severity: SeverityError,
		},
		{
			name: "declared scalar property without unit",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    volume:
      type: tosca.nodes.BlockStorage
      properties:
        size: 10
`,
			wantCode: CodeInvalidScalarUnit,
			wantPath: "topology_template.node_templates.volume.properties.size",
			severity: SeverityError,
		},
		{
			name: "name-matched scalar property without unit",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    vm:
      type: tosca.nodes.Compute
      properties:
        swap_size: 2048
`,
			wantCode: CodeInvalidScalarUnit,
			wantPath: "topology_template.node_templates.vm.properties.swap_size",
			severity: SeverityWarning,
		},
		{
			name: "bad frequency",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    vm:
      type: tosca.nodes.Compute
      capabilities:
        host:
          properties:
            cpu_frequency: 2 GB
`,
			wantCode: CodeInvalidScalarUnit,
			wantPath: "topology_template.node_templates.vm.capabilities.host.properties.cpu_frequency",
			severity: SeverityError,
		},
		{
			name: "get_input of undeclared input",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  inputs:
    image:
      type: string
  node_templates:
    vm:
      type: tosca.nodes.Compute
      properties:
        image: { get_input: image }
        flavor: { get_input: flavor }
`,
			wantCode: CodeUnresolvedInput,
			wantPath: "topology_template.node_templates.vm.properties.flavor",
			severity: SeverityError,
		},
		{
			name: "get_property of unknown template",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    vm:
      type: tosca.nodes.Compute
      properties:
        peer: { concat: [ "http://", { get_attribute: [ ghost, public_address ] } ] }
        self_ip: { get_attribute: [ SELF, private_address ] }
`,
			wantCode: CodeUnresolvedFunction,
			wantPath: "topology_template.node_templates.vm.properties.peer",
			severity: SeverityError,
		},
		{
			name: "output function",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    vm:
      type: tosca.nodes.Compute
  outputs:
    ip:
      value: { get_attribute: [ vm2, public_address ] }
`,
			wantCode: CodeUnresolvedFunction,
			wantPath: "topology_template.outputs.ip.value",
			severity: SeverityError,
		},
		{
			name: "unknown group type",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    vm:
      type: tosca.nodes.Compute
  groups:
    g:
      type: example.groups.Cluster
      members: [ vm ]
`,
			wantCode: CodeUnknownType,
			wantPath: "topology_template.groups.g.type",
			severity: SeverityError,
		},
		{
			name: "vnffg endpoint mismatch",
			doc: `tosca_definitions_version: tosca_simple_profile_for_nfv_1_0_0
topology_template:
  node_templates:
    CP1:
      type: tosca.nodes.nfv.CP
  groups:
    VNFFG1:
      type: tosca.groups.nfv.VNFFG
      properties:
        number_of_endpoints: 3
        connection_point: [ CP1 ]
`,
			wantCode: CodeEndpointCountMismatch,
			wantPath: "topology_template.groups.VNFFG1.properties.number_of_endpoints",
			severity: SeverityWarning,
		},
		{
			name: "vnffg unknown constituent",
			doc: `tosca_definitions_version: tosca_simple_profile_for_nfv_1_0_0
topology_template:
  node_templates:
    CP1:
      type: tosca.nodes.nfv.CP
  groups:
    VNFFG1:
      type: tosca.groups.nfv.VNFFG
      properties:
        connection_point: [ CP1 ]
        constituent_vnfs: [ VNF9 ]
`,
			wantCode: CodeUnresolvedGroupMember,
			wantPath: "topology_template.groups.VNFFG1.properties.constituent_vnfs",
			severity: SeverityError,
		},
		{
			name: "artifact without signature",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
metadata:
  artifacts:
    images/a.img:
      content-type: application/octet-stream
topology_template: {}
`,
			wantCode: CodeInvalidSignature,
			wantPath: "metadata.artifacts.images/a.img",
			severity: SeverityError,
		},
		{
			name: "digest length does not match algorithm",
			doc: `tosca_definitions_version: tosca_simple_yaml_1_3
metadata:
  artifacts:
    images/a.img:
      content-type: application/octet-stream
      signature:
        algorithm: SHA-256
        digest: AAAA
topology_template: {}
`,
			wantCode: CodeInvalidSignature,
			wantPath: "metadata.artifacts.images/a.img.signature",
			severity: SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := checkDoc(t, tt.doc, CheckOptions{})
			issue := findIssue(r, tt.wantCode, tt.wantPath)
			if issue == nil {
				t.Fatalf("no %s issue at %q; got:\n%v", tt.wantCode, tt.wantPath, r.Issues)
			}
			if issue.Severity != tt.severity {
				t.Errorf("severity = %s, want %s", issue.Severity, tt.severity)
			}
			if issue.File != "main.yaml" {
				t.Errorf("File = %q, want main.yaml", issue.File)
			}
		})
	}
}

func TestCheck_NoFalsePositives(t *testing.T) {
	doc := `tosca_definitions_version: tosca_simple_yaml_1_3
imports:
  - file: vendor.yaml
    namespace_prefix: vnd
topology_template:
  inputs:
    image:
      type: string
  node_templates:
    vm:
      type: tosca:Compute
      properties:
        image: { get_input: [ image ] }
      capabilities:
        host:
          properties:
            disk_size: 20 GiB
            mem_size: { get_input: image }
    volume:
      type: BlockStorage
      properties:
        size: 10 GB
    app:
      type: vnd:example.nodes.App
      requirements:
        - host:
            node: vm
            capability: tosca.capabilities.Container
            relationship: HostedOn
        - dependency: volume
`
	fsys := fstest.MapFS{
		"vendor.yaml": {Data: []byte(`tosca_definitions_version: tosca_simple_yaml_1_3
node_types:
  example.nodes.App:
    derived_from: tosca.nodes.SoftwareComponent
`)},
	}
	defs, err := NewLoader(fsys).LoadBytes("main.yaml", []byte(doc))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	r := Check(defs, CheckOptions{Strict: true})
	for _, i := range r.Issues {
		t.Errorf("unexpected issue: %s", i)
	}
}

func TestCheck_StorageTypesByVersion(t *testing.T) {
	const body = `
node_types:
  example.nodes.Store:
    derived_from: tosca.nodes.Abstract.Storage
    capabilities:
      store: tosca.capabilities.Storage
topology_template:
  node_templates:
    vm:
      type: tosca.nodes.Abstract.Compute
    block:
      type: tosca.nodes.Storage.BlockStorage
      properties:
        size: 10 GB
    object:
      type: tosca.nodes.Storage.ObjectStorage
      properties:
        size: 1 GiB
        maxsize: 4 GiB
    store:
      type: example.nodes.Store
      properties:
        size: 512 MB
`
	for _, version := range []string{"tosca_simple_yaml_1_1", "tosca_simple_yaml_1_2", "tosca_simple_yaml_1_3"} {
		t.Run(version, func(t *testing.T) {
			r := CheckBytes("t.yaml", []byte("tosca_definitions_version: "+version+"\n"+body), CheckOptions{Strict: true})
			for _, i := range r.Issues {
				t.Errorf("unexpected issue: %s", i)
			}
			if !r.OK() {
				t.Error("OK() = false")
			}
		})
	}

	bad := `tosca_definitions_version: tosca_simple_yaml_1_2
topology_template:
  node_templates:
    object:
      type: tosca.nodes.Storage.ObjectStorage
      properties:
        size: 1 GiB
        maxsize: 4
`
	r := checkDoc(t, bad, CheckOptions{})
	issue := findIssue(r, CodeInvalidScalarUnit, "topology_template.node_templates.object.properties.maxsize")
	if issue == nil {
		t.Fatalf("no invalid maxsize issue; got %v", r.Issues)
	}
	if issue.Severity != SeverityError {
		t.Errorf("severity = %s, want %s", issue.Severity, SeverityError)
	}
}

func TestCheck_IssueLines(t *testing.T) {
	doc := `tosca_definitions_version: tosca_simple_yaml_1_3
topology_template:
  node_templates:
    app:
      type: tosca.nodes.SoftwareComponent
      requirements:
        - host: nowhere
`
	r := checkDoc(t, doc, CheckOptions{})
	issue := findIssue(r, CodeUnresolvedRequirement, "")
	if issue == nil {
		t.Fatalf("no unresolved requirement; got %v", r.Issues)
	}
	if issue.Line != 7 {
		t.Errorf("Line = %d, want 7", issue.Line)
	}
	if !strings.Contains(issue.String(), "main.yaml:7: error [unresolved-requirement]") {
		t.Errorf("String() = %q", issue.String())
	}
}
