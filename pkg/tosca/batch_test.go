package tosca

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	garbled := filepath.Join(dir, "garbled.yaml")
	if err := os.WriteFile(garbled, []byte("topology_template: [\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	files := []string{
		filepath.Join("testdata", "broken.yaml"),
		filepath.Join("testdata", "vnffg", "tosca-vnffg.yaml"),
		garbled,
		filepath.Join("testdata", "cycle", "a.yaml"),
	}
	reports, err := CheckFiles(context.Background(), files, CheckOptions{}, 2)
	if err != nil {
		t.Fatalf("CheckFiles() error = %v", err)
	}
	if len(reports) != len(files) {
		t.Fatalf("len(reports) = %d, want %d", len(reports), len(files))
	}
	for i, r := range reports {
		if r.Source != files[i] {
			t.Errorf("reports[%d].Source = %q, want %q", i, r.Source, files[i])
		}
	}

	if !reports[0].HasErrors() {
		t.Error("broken.yaml should have errors")
	}
	if len(reports[1].Issues) != 0 {
		t.Errorf("tosca-vnffg.yaml issues = %v", reports[1].Issues)
	}
	if len(reports[2].Issues) != 1 || reports[2].Issues[0].Code != CodeParseError {
		t.Errorf("garbled.yaml issues = %v, want one parse-error", reports[2].Issues)
	}

	cyc := reports[3]
	if cyc.HasErrors() || len(cyc.Issues) != 1 || cyc.Issues[0].Code != CodeImportCycle {
		t.Errorf("cycle/a.yaml issues = %v, want one import-cycle warning", cyc.Issues)
	}
	if want := filepath.Join("testdata", "cycle", "b.yaml"); cyc.Issues[0].File != want {
		t.Errorf("cycle issue File = %q, want %q", cyc.Issues[0].File, want)
	}
}

func TestCheckFiles_MissingFile(t *testing.T) {
	_, err := CheckFiles(context.Background(), []string{"testdata/does-not-exist.yaml"}, CheckOptions{}, 4)
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCheckFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CheckFiles(ctx, []string{filepath.Join("testdata", "broken.yaml")}, CheckOptions{}, 0)
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestExternalReferences(t *testing.T) {
	defs, err := LoadFile(filepath.Join("testdata", "vnffg", "tosca-vnffg.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	refs := defs.Entry.ExternalReferences()

	want := map[string]string{
		"topology_template.node_templates.VDU1.artifacts.VNFImage":                        "images/cirros.qcow2",
		"topology_template.node_templates.VDU1.interfaces.Standard.create.implementation": "scripts/install.sh",
	}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %d entries", refs, len(want))
	}
	for _, ref := range refs {
		if want[ref.Path] != ref.Target {
			t.Errorf("ref %s = %q, want %q", ref.Path, ref.Target, want[ref.Path])
		}
		if ref.IsURL() {
			t.Errorf("ref %s reported as URL", ref.Path)
		}
	}
}
