package csar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nfvpack/nfvpack/pkg/util"
)

func TestPack_Directory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "vnffg.csar")
	p, err := Pack(context.Background(), PackOptions{
		Source:      sampleDir,
		Entry:       "Definitions/tosca-vnffg.yaml",
		Author:      "carol",
		Description: "packed in a test",
		Output:      out,
	})
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if p.Source() != out {
		t.Errorf("Source() = %q, want %q", p.Source(), out)
	}
	if p.Author() != "carol" {
		t.Errorf("Author() = %q, want carol (existing TOSCA.meta must be replaced)", p.Author())
	}
	if p.Meta().Description != "packed in a test" {
		t.Errorf("Description = %q", p.Meta().Description)
	}
	if p.EntryDefinitions() != "Definitions/tosca-vnffg.yaml" {
		t.Errorf("EntryDefinitions() = %q", p.EntryDefinitions())
	}
	for _, f := range []string{MetaFile, "Definitions/types/vnf_types.yaml", "Definitions/images/cirros.qcow2"} {
		if !p.Has(f) {
			t.Errorf("packed archive is missing %s", f)
		}
	}

	r, err := p.Validate(context.Background(), ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(r.Issues) != 0 {
		t.Errorf("packed archive issues = %v", r.Issues)
	}
}

func TestPack_AutoEntry(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "web.yaml"), []byte(inlineTemplate), 0644); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(src, "scripts"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "scripts", "extra.yaml"), []byte("x: 1\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	// Output inside the source tree is not packed into itself.
	out := filepath.Join(src, "web.csar")
	if err := os.WriteFile(out, []byte("stale"), 0644); err != nil {
		t.Fatalf("Failed to write stale output: %v", err)
	}

	p, err := Pack(context.Background(), PackOptions{Source: src, Output: out})
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if p.EntryDefinitions() != "web.yaml" {
		t.Errorf("EntryDefinitions() = %q, want web.yaml", p.EntryDefinitions())
	}
	if p.Author() != DefaultAuthor {
		t.Errorf("Author() = %q, want %q", p.Author(), DefaultAuthor)
	}
	if p.Has("web.csar") {
		t.Error("output archive packed into itself")
	}
	if p.Version() != CSARVersion {
		t.Errorf("Version() = %q, want %q", p.Version(), CSARVersion)
	}
}

func TestPack_FromZip(t *testing.T) {
	src := writeTemp(t, "inline.zip", zipFiles(t, map[string][]byte{
		"web.yaml":          []byte(inlineTemplate),
		"scripts/deploy.sh": []byte("#!/bin/sh\n"),
	}))
	out := filepath.Join(t.TempDir(), "web.csar")

	p, err := Pack(context.Background(), PackOptions{Source: src, Author: "dave", Output: out})
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if !p.HasMetaFile() {
		t.Error("repacked archive should carry TOSCA.meta")
	}
	if p.Author() != "dave" || p.EntryDefinitions() != "web.yaml" {
		t.Errorf("Author/Entry = %q/%q", p.Author(), p.EntryDefinitions())
	}
	data, err := p.ReadFile("scripts/deploy.sh")
	if err != nil || string(data) != "#!/bin/sh\n" {
		t.Errorf("ReadFile(deploy.sh) = %q, %v", data, err)
	}
}

func TestPack_Errors(t *testing.T) {
	twoRoots := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(twoRoots, name), []byte(inlineTemplate), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	tests := []struct {
		name    string
		opts    PackOptions
		wantMsg string
	}{
		{"no source", PackOptions{Output: "x.csar"}, "source is required"},
		{"no output", PackOptions{Source: sampleDir}, "output is required"},
		{"missing source", PackOptions{Source: filepath.Join(twoRoots, "nope"), Output: "x.csar"}, "cannot read source"},
		{"ambiguous entry", PackOptions{Source: twoRoots, Output: filepath.Join(t.TempDir(), "x.csar")}, "found 2 YAML files"},
		{"unknown entry", PackOptions{Source: sampleDir, Entry: "main.yaml", Output: filepath.Join(t.TempDir(), "x.csar")}, `entry "main.yaml" not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Pack(context.Background(), tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}

	_, err := Pack(context.Background(), PackOptions{Source: twoRoots, Output: filepath.Join(t.TempDir(), "x.csar")})
	if !errors.Is(err, util.ErrInvalidPackage) {
		t.Errorf("ambiguous entry error %v should wrap ErrInvalidPackage", err)
	}
}
