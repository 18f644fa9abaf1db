// Package settings manages persistent user settings for the nfvpack CLI.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/google/renameio/v2"

	"github.com/nfvpack/nfvpack/pkg/util"
)

// Settings holds persistent user preferences
type Settings struct {
	// DefaultAuthor is written to Created-By when pack has no --author
	DefaultAuthor string `json:"default_author,omitempty"`

	// OutputDir is where pack writes archives given without a directory
	OutputDir string `json:"output_dir,omitempty"`

	// CatalogAddr is the Redis address of the package catalog
	CatalogAddr string `json:"catalog_addr,omitempty" validate:"omitempty,hostname_port"`

	// AuditLog overrides the audit log path
	AuditLog string `json:"audit_log,omitempty"`

	// CSARVersionConstraint limits the CSAR-Version values accepted on open
	CSARVersionConstraint string `json:"csar_version_constraint,omitempty" validate:"omitempty,semver_constraint"`

	// ListenAddr is the default address for serve
	ListenAddr string `json:"listen_addr,omitempty" validate:"omitempty,hostname_port"`
}

const (
	defaultListenAddr  = ":8080"
	defaultCatalogAddr = "127.0.0.1:6379"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("semver_constraint", func(fl validator.FieldLevel) bool {
		_, err := semver.NewConstraint(fl.Field().String())
		return err == nil
	})
	return v
}

// Dir returns the nfvpack state directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nfvpack"
	}
	return filepath.Join(home, ".nfvpack")
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(Dir(), "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// Validate checks address and constraint syntax
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	vb := &util.ValidationBuilder{}
	for _, e := range verrs {
		vb.AddErrorf("%s: %q is not a valid %s", e.Field(), e.Value(), e.Tag())
	}
	return fmt.Errorf("%w: %w", util.ErrInvalidConfig, vb.Build())
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo atomically writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return renameio.WriteFile(path, append(data, '\n'), 0644)
}

// fields maps the JSON key of each setting to its field
func (s *Settings) fields() map[string]*string {
	return map[string]*string{
		"default_author":          &s.DefaultAuthor,
		"output_dir":              &s.OutputDir,
		"catalog_addr":            &s.CatalogAddr,
		"audit_log":               &s.AuditLog,
		"csar_version_constraint": &s.CSARVersionConstraint,
		"listen_addr":             &s.ListenAddr,
	}
}

// Keys lists the setting names accepted by Set
func Keys() []string {
	keys := make([]string, 0, 6)
	for k := range (&Settings{}).fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a setting by its JSON key. An empty value clears it.
func (s *Settings) Set(key, value string) error {
	f, ok := s.fields()[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (valid: %v)", key, Keys())
	}
	old := *f
	*f = value
	if err := s.Validate(); err != nil {
		*f = old
		return err
	}
	return nil
}

// Get returns a setting by its JSON key
func (s *Settings) Get(key string) (string, bool) {
	f, ok := s.fields()[key]
	if !ok {
		return "", false
	}
	return *f, true
}

// GetAuthor returns the default author (with fallback)
func (s *Settings) GetAuthor() string {
	if s.DefaultAuthor != "" {
		return s.DefaultAuthor
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "nfvpack"
}

// GetCatalogAddr returns the catalog address (with fallback)
func (s *Settings) GetCatalogAddr() string {
	return util.CoalesceString(s.CatalogAddr, defaultCatalogAddr)
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	return filepath.Join(Dir(), "audit.log")
}

// GetListenAddr returns the serve address (with fallback)
func (s *Settings) GetListenAddr() string {
	return util.CoalesceString(s.ListenAddr, defaultListenAddr)
}

// OutputPath places a bare archive name in OutputDir
func (s *Settings) OutputPath(name string) string {
	if s.OutputDir == "" || filepath.IsAbs(name) || filepath.Dir(name) != "." {
		return name
	}
	return filepath.Join(s.OutputDir, name)
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
