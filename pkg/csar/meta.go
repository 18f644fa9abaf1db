package csar

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nfvpack/nfvpack/pkg/tosca"
	"github.com/nfvpack/nfvpack/pkg/util"
)

const (
	// MetaFile is the archive path of the block-0 metadata file.
	MetaFile = "TOSCA-Metadata/TOSCA.meta"
	// MetaFileVersion is the only supported TOSCA-Meta-File-Version.
	MetaFileVersion = "1.0"
	// CSARVersion is the version written into new archives.
	CSARVersion = "1.1"
	// DefaultVersionConstraint accepts the CSAR-Version values Open reads.
	DefaultVersionConstraint = "~1.1"
)

var validate = newValidator()

// newValidator reports fields by their YAML key so messages match the file.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Meta is the content of TOSCA-Metadata/TOSCA.meta.
type Meta struct {
	FileVersion      string `yaml:"TOSCA-Meta-File-Version" validate:"required,eq=1.0"`
	CSARVersion      string `yaml:"CSAR-Version" validate:"required"`
	CreatedBy        string `yaml:"Created-By" validate:"required"`
	EntryDefinitions string `yaml:"Entry-Definitions" validate:"required"`
	Description      string `yaml:"Description,omitempty"`
}

// NewMeta returns the metadata written for a new archive.
func NewMeta(author, entry string) *Meta {
	return &Meta{
		FileVersion:      MetaFileVersion,
		CSARVersion:      CSARVersion,
		CreatedBy:        author,
		EntryDefinitions: entry,
	}
}

// ParseMeta decodes a TOSCA.meta document.
func ParseMeta(data []byte) (*Meta, error) {
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s is not valid YAML: %w", MetaFile, err)
	}
	return &m, nil
}

// Marshal encodes the metadata in TOSCA.meta key order.
func (m *Meta) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Validate checks the required keys and the CSAR-Version constraint.
func (m *Meta) Validate(constraint *semver.Constraints) error {
	vb := &util.ValidationBuilder{}
	addStructErrors(vb, validate.Struct(m))

	if m.CSARVersion != "" && constraint != nil {
		v, err := semver.NewVersion(m.CSARVersion)
		switch {
		case err != nil:
			vb.AddErrorf("CSAR-Version %q is not a version number", m.CSARVersion)
		case !constraint.Check(v):
			vb.AddError(util.NewVersionError("CSAR-Version", m.CSARVersion, constraint.String()).Error())
		}
	}
	if m.EntryDefinitions != "" && escapesRoot(path.Clean(m.EntryDefinitions)) {
		vb.AddErrorf("Entry-Definitions %q must be a path inside the archive", m.EntryDefinitions)
	}
	return vb.Build()
}

// inlineMeta holds the keys a root template must carry when the archive has
// no TOSCA.meta.
type inlineMeta struct {
	TemplateName    string `yaml:"template_name" validate:"required"`
	TemplateAuthor  string `yaml:"template_author" validate:"required"`
	TemplateVersion string `yaml:"template_version" validate:"required"`
}

func validateInline(md tosca.Metadata) error {
	vb := &util.ValidationBuilder{}
	addStructErrors(vb, validate.Struct(inlineMeta{
		TemplateName:    md.TemplateName,
		TemplateAuthor:  md.TemplateAuthor,
		TemplateVersion: md.TemplateVersion,
	}))
	return vb.Build()
}

// addStructErrors converts validator errors into builder messages.
func addStructErrors(vb *util.ValidationBuilder, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		vb.AddError(err.Error())
		return
	}
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			vb.AddErrorf("missing metadata %q", e.Field())
		case "eq":
			vb.AddErrorf("metadata %q must be %s, got %q", e.Field(), e.Param(), e.Value())
		default:
			vb.AddErrorf("metadata %q failed %s validation", e.Field(), e.Tag())
		}
	}
}
