// Package csar reads, validates and writes TOSCA Cloud Service Archives
// (CSAR v1.1 ZIP packages).
package csar

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/nfvpack/nfvpack/pkg/tosca"
	"github.com/nfvpack/nfvpack/pkg/util"
	"github.com/nfvpack/nfvpack/pkg/version"
)

// DefaultMaxSize bounds downloads and uploads.
const DefaultMaxSize = 256 << 20

// Package is an opened CSAR whose metadata has been validated.
type Package struct {
	source string
	fsys   fs.FS
	files  []string
	digest string
	size   int64

	meta   *Meta
	inline tosca.Metadata
	entry  string

	once     sync.Once
	template *tosca.ServiceTemplate
	tmplErr  error
}

type openConfig struct {
	constraint string
	client     *http.Client
	maxSize    int64
}

// Option configures Open.
type Option func(*openConfig)

// WithVersionConstraint sets the accepted CSAR-Version range.
func WithVersionConstraint(c string) Option {
	return func(o *openConfig) {
		if c != "" {
			o.constraint = c
		}
	}
}

// WithHTTPClient sets the client used for remote sources.
func WithHTTPClient(c *http.Client) Option {
	return func(o *openConfig) { o.client = c }
}

// WithMaxSize bounds the archive size for downloads and in-memory archives.
func WithMaxSize(n int64) Option {
	return func(o *openConfig) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

func newOpenConfig(opts []Option) *openConfig {
	cfg := &openConfig{
		constraint: DefaultVersionConstraint,
		client:     &http.Client{Timeout: 60 * time.Second},
		maxSize:    DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Open reads a CSAR from a local ZIP file, an unpacked directory, or an
// http(s) URL, and validates its metadata.
func Open(ctx context.Context, source string, opts ...Option) (*Package, error) {
	cfg := newOpenConfig(opts)

	if isURL(source) {
		data, err := download(ctx, cfg, source)
		if err != nil {
			return nil, util.NewPackageError(source, "download failed", err)
		}
		return openBytes(source, data, cfg)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, util.NewPackageError(source, "cannot read source", err)
	}
	if info.IsDir() {
		p := &Package{source: source, fsys: os.DirFS(source)}
		if err := p.load(cfg); err != nil {
			return nil, err
		}
		return p, nil
	}
	if info.Size() > cfg.maxSize {
		return nil, util.NewPackageError(source, fmt.Sprintf("archive exceeds %d bytes", cfg.maxSize), nil)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, util.NewPackageError(source, "cannot read source", err)
	}
	return openBytes(source, data, cfg)
}

// OpenBytes opens an in-memory archive. source names it in errors and reports.
func OpenBytes(source string, data []byte, opts ...Option) (*Package, error) {
	cfg := newOpenConfig(opts)
	if int64(len(data)) > cfg.maxSize {
		return nil, util.NewPackageError(source, fmt.Sprintf("archive exceeds %d bytes", cfg.maxSize), nil)
	}
	return openBytes(source, data, cfg)
}

func openBytes(source string, data []byte, cfg *openConfig) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, util.NewPackageError(source, "not a ZIP archive", err)
	}
	sum := sha256.Sum256(data)
	p := &Package{
		source: source,
		fsys:   zr,
		digest: hex.EncodeToString(sum[:]),
		size:   int64(len(data)),
	}
	if err := p.load(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

func download(ctx context.Context, cfg *openConfig, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := cfg.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, cfg.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > cfg.maxSize {
		return nil, fmt.Errorf("archive exceeds %d bytes", cfg.maxSize)
	}
	util.WithPackage(url).Debugf("Downloaded %d bytes", len(data))
	return data, nil
}

// load indexes the files and validates block-0 or inline metadata.
func (p *Package) load(cfg *openConfig) error {
	err := fs.WalkDir(p.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			p.files = append(p.files, name)
		}
		return nil
	})
	if err != nil {
		return util.NewPackageError(p.source, "cannot list contents", err)
	}
	sort.Strings(p.files)

	if p.HasMetaFile() {
		return p.loadMetaFile(cfg)
	}
	return p.loadInline()
}

func (p *Package) loadMetaFile(cfg *openConfig) error {
	data, err := fs.ReadFile(p.fsys, MetaFile)
	if err != nil {
		return util.NewPackageError(p.source, "cannot read "+MetaFile, err)
	}
	meta, err := ParseMeta(data)
	if err != nil {
		return util.NewPackageError(p.source, "invalid metadata", err)
	}
	constraint, err := semver.NewConstraint(cfg.constraint)
	if err != nil {
		return fmt.Errorf("invalid CSAR version constraint %q: %w", cfg.constraint, err)
	}
	if err := meta.Validate(constraint); err != nil {
		return util.NewPackageError(p.source, "invalid metadata", err)
	}
	entry := path.Clean(meta.EntryDefinitions)
	if !p.Has(entry) {
		return util.NewPackageError(p.source,
			fmt.Sprintf("Entry-Definitions points to %q, but the file does not exist", meta.EntryDefinitions), nil)
	}
	p.meta = meta
	p.entry = entry
	util.WithPackage(p.source).Debugf("Metadata file: CSAR-Version %s, entry %s", meta.CSARVersion, entry)
	return nil
}

func (p *Package) loadInline() error {
	roots := rootTemplates(p.files)
	if len(roots) != 1 {
		return util.NewPackageError(p.source,
			fmt.Sprintf("no %s and %d YAML files in the archive root (want exactly 1)", MetaFile, len(roots)), nil)
	}
	data, err := fs.ReadFile(p.fsys, roots[0])
	if err != nil {
		return util.NewPackageError(p.source, "cannot read "+roots[0], err)
	}
	st, err := tosca.Parse(data)
	if err != nil {
		return util.NewPackageError(p.source, "invalid entry template", err)
	}
	if err := validateInline(st.Metadata); err != nil {
		return util.NewPackageError(p.source, "invalid inline metadata", err)
	}
	st.Path = roots[0]
	p.inline = st.Metadata
	p.entry = roots[0]
	p.once.Do(func() { p.template = st })
	util.WithPackage(p.source).Debugf("Inline metadata: template %s, entry %s", st.Metadata.TemplateName, p.entry)
	return nil
}

// rootTemplates returns the YAML files at the archive root.
func rootTemplates(files []string) []string {
	var out []string
	for _, f := range files {
		if strings.Contains(f, "/") {
			continue
		}
		if ext := strings.ToLower(path.Ext(f)); ext == ".yaml" || ext == ".yml" {
			out = append(out, f)
		}
	}
	return out
}

// Source returns the path or URL the package was opened from.
func (p *Package) Source() string { return p.source }

// FS exposes the package contents.
func (p *Package) FS() fs.FS { return p.fsys }

// Files lists the regular files in the package, sorted.
func (p *Package) Files() []string { return p.files }

// Has reports whether the package contains the named file.
func (p *Package) Has(name string) bool {
	i := sort.SearchStrings(p.files, name)
	return i < len(p.files) && p.files[i] == name
}

// ReadFile returns the content of a file in the package.
func (p *Package) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(p.fsys, name)
}

// HasMetaFile reports whether the package carries TOSCA-Metadata/TOSCA.meta.
func (p *Package) HasMetaFile() bool { return p.Has(MetaFile) }

// Meta returns the parsed TOSCA.meta, or nil for inline metadata.
func (p *Package) Meta() *Meta { return p.meta }

// Digest returns the hex SHA-256 of the archive bytes. Directories have no digest.
func (p *Package) Digest() string { return p.digest }

// Size returns the archive size in bytes.
func (p *Package) Size() int64 { return p.size }

// EntryDefinitions returns the archive path of the entry template.
func (p *Package) EntryDefinitions() string { return p.entry }

// Author returns Created-By, or template_author for inline metadata.
func (p *Package) Author() string {
	if p.meta != nil {
		return p.meta.CreatedBy
	}
	return p.inline.TemplateAuthor
}

// Version returns CSAR-Version, or template_version for inline metadata.
func (p *Package) Version() string {
	if p.meta != nil {
		return p.meta.CSARVersion
	}
	return p.inline.TemplateVersion
}

// MetaFileVersion returns TOSCA-Meta-File-Version, empty for inline metadata.
func (p *Package) MetaFileVersion() string {
	if p.meta != nil {
		return p.meta.FileVersion
	}
	return ""
}

// TemplateName returns the template name from the metadata, falling back to
// the entry template's metadata and then to the entry file name.
func (p *Package) TemplateName() string {
	if p.inline.TemplateName != "" {
		return p.inline.TemplateName
	}
	if st, err := p.Template(); err == nil && st.Metadata.TemplateName != "" {
		return st.Metadata.TemplateName
	}
	base := path.Base(p.entry)
	return strings.TrimSuffix(base, path.Ext(base))
}

// TemplateVersion returns the entry template's template_version.
func (p *Package) TemplateVersion() string {
	if p.inline.TemplateVersion != "" {
		return p.inline.TemplateVersion
	}
	if st, err := p.Template(); err == nil {
		return st.Metadata.TemplateVersion
	}
	return ""
}

// Description returns the metadata Description, falling back to the entry
// template's description.
func (p *Package) Description() string {
	if p.meta != nil && p.meta.Description != "" {
		return p.meta.Description
	}
	if st, err := p.Template(); err == nil {
		return st.Description
	}
	return ""
}

// Template parses the entry template.
func (p *Package) Template() (*tosca.ServiceTemplate, error) {
	p.once.Do(func() {
		data, err := fs.ReadFile(p.fsys, p.entry)
		if err != nil {
			p.tmplErr = err
			return
		}
		st, err := tosca.Parse(data)
		if err != nil {
			p.tmplErr = err
			return
		}
		st.Path = p.entry
		p.template = st
	})
	if p.tmplErr != nil {
		return nil, p.tmplErr
	}
	return p.template, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// escapesRoot reports whether a cleaned relative path leaves the archive.
func escapesRoot(name string) bool {
	return name == ".." || strings.HasPrefix(name, "../") || strings.HasPrefix(name, "/")
}
