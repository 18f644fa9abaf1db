package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nfvpack/nfvpack/pkg/util"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	if got := s.GetListenAddr(); got != ":8080" {
		t.Errorf("GetListenAddr() default = %q, want %q", got, ":8080")
	}
	if got := s.GetCatalogAddr(); got != "127.0.0.1:6379" {
		t.Errorf("GetCatalogAddr() default = %q, want %q", got, "127.0.0.1:6379")
	}
	if got := s.GetAuditLog(); filepath.Base(got) != "audit.log" {
		t.Errorf("GetAuditLog() default = %q", got)
	}
	if s.GetAuthor() == "" {
		t.Error("GetAuthor() should never be empty")
	}
	if got := s.OutputPath("web.csar"); got != "web.csar" {
		t.Errorf("OutputPath() without OutputDir = %q", got)
	}
}

func TestSettings_Overrides(t *testing.T) {
	s := &Settings{
		DefaultAuthor: "alice",
		OutputDir:     "/srv/csar",
		CatalogAddr:   "redis:6379",
		AuditLog:      "/var/log/nfvpack.log",
		ListenAddr:    "0.0.0.0:9000",
	}
	if got := s.GetAuthor(); got != "alice" {
		t.Errorf("GetAuthor() = %q", got)
	}
	if got := s.GetCatalogAddr(); got != "redis:6379" {
		t.Errorf("GetCatalogAddr() = %q", got)
	}
	if got := s.GetAuditLog(); got != "/var/log/nfvpack.log" {
		t.Errorf("GetAuditLog() = %q", got)
	}
	if got := s.GetListenAddr(); got != "0.0.0.0:9000" {
		t.Errorf("GetListenAddr() = %q", got)
	}

	tests := []struct {
		name, want string
	}{
		{"web.csar", filepath.Join("/srv/csar", "web.csar")},
		{"out/web.csar", "out/web.csar"},
		{"/tmp/web.csar", "/tmp/web.csar"},
	}
	for _, tt := range tests {
		if got := s.OutputPath(tt.name); got != tt.want {
			t.Errorf("OutputPath(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSettings_SetGet(t *testing.T) {
	s := &Settings{}

	if err := s.Set("default_author", "bob"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if s.DefaultAuthor != "bob" {
		t.Errorf("DefaultAuthor = %q", s.DefaultAuthor)
	}
	if v, ok := s.Get("default_author"); !ok || v != "bob" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
	if _, ok := s.Get("nope"); ok {
		t.Error("Get() of unknown key should report false")
	}

	if err := s.Set("nope", "x"); err == nil {
		t.Error("Set() of unknown key should fail")
	}

	if err := s.Set("csar_version_constraint", ">= 1.0, < 2"); err != nil {
		t.Errorf("Set() valid constraint error = %v", err)
	}
	err := s.Set("csar_version_constraint", "not a constraint")
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Set() invalid constraint error = %v, want ErrInvalidConfig", err)
	}
	if s.CSARVersionConstraint != ">= 1.0, < 2" {
		t.Errorf("failed Set() should keep the old value, got %q", s.CSARVersionConstraint)
	}

	if err := s.Set("listen_addr", "no-port"); err == nil {
		t.Error("Set() listen_addr without port should fail")
	}
	if err := s.Set("listen_addr", ""); err != nil {
		t.Errorf("clearing listen_addr error = %v", err)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	want := []string{"audit_log", "catalog_addr", "csar_version_constraint", "default_author", "listen_addr", "output_dir"}
	if len(keys) != len(want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{DefaultAuthor: "a", OutputDir: "/o", CatalogAddr: "h:1", ListenAddr: ":1"}
	s.Clear()
	if *s != (Settings{}) {
		t.Errorf("Clear() left %+v", s)
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	original := &Settings{
		DefaultAuthor:         "carol",
		OutputDir:             "/srv/csar",
		CatalogAddr:           "127.0.0.1:6380",
		CSARVersionConstraint: "~1.1",
	}
	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("loaded %+v, want %+v", loaded, original)
	}
}

func TestSettings_SaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := &Settings{CatalogAddr: "not an address"}
	if err := s.SaveTo(path); err == nil {
		t.Error("SaveTo() should validate")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid settings should not be written")
	}
}

func TestSettings_LoadNonExistent(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "missing", "settings.json"))
	if err != nil {
		t.Fatalf("LoadFrom() non-existent should not error: %v", err)
	}
	if s == nil || *s != (Settings{}) {
		t.Errorf("LoadFrom() non-existent should return empty settings, got %+v", s)
	}
}

func TestSettings_LoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad json", "invalid json {"},
		{"bad constraint", `{"csar_version_constraint":"???"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test file: %v", err)
			}
			if _, err := LoadFrom(path); err == nil {
				t.Error("LoadFrom() should error")
			}
		})
	}
}

func TestSettings_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "nested", "settings.json")

	s := &Settings{DefaultAuthor: "test"}
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() should create directories: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("SaveTo() should have created the file")
	}
}

func TestSaveLoad_Home(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() with non-existent file should not error: %v", err)
	}
	if s.DefaultAuthor != "" {
		t.Error("Load() with non-existent file should return empty settings")
	}

	s.DefaultAuthor = "dave"
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	expectedPath := filepath.Join(home, ".nfvpack", "settings.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Save() did not create file at %s", expectedPath)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() after Save() failed: %v", err)
	}
	if loaded.DefaultAuthor != "dave" {
		t.Errorf("After Save(), DefaultAuthor = %q, want %q", loaded.DefaultAuthor, "dave")
	}
}

func TestDefaultSettingsPath_NoHome(t *testing.T) {
	t.Setenv("HOME", "")
	os.Unsetenv("HOME")

	if got := DefaultSettingsPath(); got != filepath.Join(".nfvpack", "settings.json") {
		t.Errorf("DefaultSettingsPath() with no HOME = %q", got)
	}
}

func TestLoadFrom_ReadError(t *testing.T) {
	dirAsFile := filepath.Join(t.TempDir(), "settings.json")
	if err := os.Mkdir(dirAsFile, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if _, err := LoadFrom(dirAsFile); err == nil {
		t.Error("LoadFrom() should error when path is a directory")
	}
}

func TestSaveTo_MkdirError(t *testing.T) {
	blockingFile := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blockingFile, []byte("blocking"), 0644); err != nil {
		t.Fatalf("Failed to create blocking file: %v", err)
	}
	s := &Settings{DefaultAuthor: "test"}
	if err := s.SaveTo(filepath.Join(blockingFile, "subdir", "settings.json")); err == nil {
		t.Error("SaveTo() should fail when directory creation fails")
	}
}
