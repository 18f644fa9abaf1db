package tosca

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"testing/fstest"
)

const typesOnly = `tosca_definitions_version: tosca_simple_yaml_1_3
node_types:
  example.nodes.%s:
    derived_from: tosca.nodes.Root
`

func typesDoc(name string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(strings.Replace(typesOnly, "%s", name, 1))}
}

func issueCodes(issues []Issue) []string {
	codes := make([]string, 0, len(issues))
	for _, i := range issues {
		codes = append(codes, i.Code)
	}
	sort.Strings(codes)
	return codes
}

func TestLoader_Imports(t *testing.T) {
	fsys := fstest.MapFS{
		"service/main.yaml": {Data: []byte(`tosca_definitions_version: tosca_simple_yaml_1_3
imports:
  - types/a.yaml
  - file: ../common/b.yaml
    namespace_prefix: common
  - tosca-simple-profile-1.0/tosca-simple-profile-1.0.yaml
topology_template:
  node_templates:
    one:
      type: example.nodes.A
`)},
		"service/types/a.yaml": {Data: []byte(`tosca_definitions_version: tosca_simple_yaml_1_3
imports:
  - nested/c.yaml
`)},
		"service/types/nested/c.yaml": typesDoc("C"),
		"common/b.yaml":               typesDoc("B"),
	}

	defs, err := NewLoader(fsys).Load("service/main.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(defs.Issues) != 0 {
		t.Errorf("Issues = %v, want none", defs.Issues)
	}

	wantOrder := []string{
		"service/main.yaml",
		"service/types/a.yaml",
		"service/types/nested/c.yaml",
		"common/b.yaml",
	}
	if strings.Join(defs.Order, ",") != strings.Join(wantOrder, ",") {
		t.Errorf("Order = %v, want %v", defs.Order, wantOrder)
	}
	if defs.Entry != defs.Templates["service/main.yaml"] {
		t.Error("Entry is not the entry template")
	}
	if len(defs.Prefixes) != 1 || defs.Prefixes[0] != "common" {
		t.Errorf("Prefixes = %v, want [common]", defs.Prefixes)
	}
}

func TestLoader_ImportProblems(t *testing.T) {
	fsys := fstest.MapFS{
		"main.yaml": {Data: []byte(`tosca_definitions_version: tosca_simple_yaml_1_3
imports:
  - missing.yaml
  - ../outside.yaml
  - /etc/abs.yaml
  - https://example.com/types.yaml
  - vendor:
      file: vendor_types.yaml
      repository: vendor_repo
  - bad.yaml
  - loop.yaml
`)},
		"bad.yaml":  {Data: []byte("node_types: [\n")},
		"loop.yaml": {Data: []byte("tosca_definitions_version: tosca_simple_yaml_1_3\nimports:\n  - main.yaml\n")},
	}

	defs, err := NewLoader(fsys).Load("main.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{
		CodeImportCycle,
		CodeParseError,
		CodeRemoteImport,
		CodeRemoteImport,
		CodeUnresolvedImport,
		CodeUnresolvedImport,
		CodeUnresolvedImport,
	}
	got := issueCodes(defs.Issues)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("issue codes = %v, want %v", got, want)
	}
	for _, i := range defs.Issues {
		if i.Code == CodeImportCycle && i.File != "loop.yaml" {
			t.Errorf("cycle reported in %q, want loop.yaml", i.File)
		}
		if i.Code == CodeUnresolvedImport && i.Line == 0 {
			t.Errorf("unresolved import without line: %v", i)
		}
	}
	if _, ok := defs.Templates["loop.yaml"]; !ok {
		t.Error("loop.yaml should still be loaded")
	}
}

func TestLoader_Errors(t *testing.T) {
	fsys := fstest.MapFS{
		"list.yaml": {Data: []byte("- not\n- a mapping\n")},
	}
	l := NewLoader(fsys)

	if _, err := l.Load("absent.yaml"); err == nil {
		t.Error("Load(absent.yaml) should fail")
	}
	if _, err := l.Load("list.yaml"); err == nil {
		t.Error("Load(list.yaml) should fail")
	}
	if _, err := NewLoader(nil).Load("x.yaml"); err == nil {
		t.Error("Load without filesystem should fail")
	}
}

func TestLoader_LoadBytesWithoutFS(t *testing.T) {
	defs, err := NewLoader(nil).LoadBytes("upload.yaml", []byte(`tosca_definitions_version: tosca_simple_yaml_1_3
imports:
  - types.yaml
`))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if got := issueCodes(defs.Issues); len(got) != 1 || got[0] != CodeUnresolvedImport {
		t.Errorf("issue codes = %v, want [%s]", got, CodeUnresolvedImport)
	}
}

func TestLoadFile(t *testing.T) {
	defs, err := LoadFile(filepath.Join("testdata", "vnffg", "tosca-vnffg.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if defs.Root != filepath.Join("testdata", "vnffg") {
		t.Errorf("Root = %q", defs.Root)
	}
	if len(defs.Templates) != 2 {
		t.Errorf("len(Templates) = %d, want 2", len(defs.Templates))
	}
	if _, ok := defs.Templates["types/vnf_types.yaml"]; !ok {
		t.Errorf("imported types not loaded: %v", defs.Order)
	}
}

func TestLoadFile_Relative(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "only.yaml"), []byte("tosca_definitions_version: tosca_simple_yaml_1_0\n"), 0644); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}
	defs, err := LoadFile(filepath.Join(dir, "only.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if defs.Entry.Path != "only.yaml" {
		t.Errorf("Entry.Path = %q, want only.yaml", defs.Entry.Path)
	}
}
