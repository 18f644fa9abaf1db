package tosca

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nfvpack/nfvpack/pkg/util"
)

// Definitions is an entry template together with everything it imports.
type Definitions struct {
	// Entry is the template loading started from.
	Entry *ServiceTemplate
	// Templates holds every loaded document keyed by its slash-separated path,
	// the entry included.
	Templates map[string]*ServiceTemplate
	// Order lists Templates keys in load order, entry first.
	Order []string
	// Prefixes lists the import namespace prefixes in use.
	Prefixes []string
	// Root is the local directory the paths are relative to, if any.
	Root string
	// Issues are problems found while resolving imports.
	Issues []Issue
}

// Loader reads templates and their imports from a filesystem.
type Loader struct {
	fsys fs.FS
}

// NewLoader creates a loader over fsys. A nil fsys leaves every import unresolved.
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// LoadFile loads a template from the local filesystem, resolving imports
// relative to its directory.
func LoadFile(file string) (*Definitions, error) {
	dir, base := filepath.Split(file)
	if dir == "" {
		dir = "."
	}
	defs, err := NewLoader(os.DirFS(dir)).Load(base)
	if err != nil {
		return nil, err
	}
	defs.Root = filepath.Clean(dir)
	return defs, nil
}

// Load reads the entry template and resolves its imports transitively.
func (l *Loader) Load(entry string) (*Definitions, error) {
	if l.fsys == nil {
		return nil, fmt.Errorf("loading %s: no filesystem", entry)
	}
	entry = path.Clean(entry)
	data, err := fs.ReadFile(l.fsys, entry)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", entry, err)
	}
	return l.LoadBytes(entry, data)
}

// LoadBytes parses data as the entry template named name and resolves its
// imports against the loader's filesystem.
func (l *Loader) LoadBytes(name string, data []byte) (*Definitions, error) {
	st, err := parseNamed(name, data)
	if err != nil {
		return nil, err
	}
	defs := &Definitions{
		Entry:     st,
		Templates: map[string]*ServiceTemplate{name: st},
		Order:     []string{name},
	}
	util.WithTemplate(name).Debugf("Loaded entry template with %d imports", len(st.Imports))

	stack := map[string]bool{name: true}
	l.resolveImports(defs, st, stack)
	return defs, nil
}

func (l *Loader) resolveImports(defs *Definitions, st *ServiceTemplate, stack map[string]bool) {
	for _, imp := range st.Imports {
		label := imp.File
		if imp.Name != "" {
			label = imp.Name
		}
		issuePath := "imports." + label

		if imp.NamespacePrefix != "" {
			defs.Prefixes = append(defs.Prefixes, imp.NamespacePrefix)
		}
		if isWellKnownImport(imp.File) {
			continue
		}
		if imp.File == "" {
			defs.issue(SeverityError, CodeUnresolvedImport, st.Path, issuePath, imp.Line, "import has no file")
			continue
		}
		if strings.Contains(imp.File, "://") || imp.Repository != "" {
			defs.issue(SeverityWarning, CodeRemoteImport, st.Path, issuePath, imp.Line,
				"remote import %q is not fetched; its types are unknown", imp.File)
			continue
		}
		if strings.HasPrefix(imp.File, "/") {
			defs.issue(SeverityError, CodeUnresolvedImport, st.Path, issuePath, imp.Line,
				"absolute import path %q is not supported", imp.File)
			continue
		}

		target := path.Join(path.Dir(st.Path), imp.File)
		if target == ".." || strings.HasPrefix(target, "../") {
			defs.issue(SeverityError, CodeUnresolvedImport, st.Path, issuePath, imp.Line,
				"import %q escapes the template root", imp.File)
			continue
		}
		if stack[target] {
			defs.issue(SeverityWarning, CodeImportCycle, st.Path, issuePath, imp.Line,
				"import %q forms a cycle", imp.File)
			continue
		}
		if _, done := defs.Templates[target]; done {
			continue
		}
		if l.fsys == nil {
			defs.issue(SeverityError, CodeUnresolvedImport, st.Path, issuePath, imp.Line,
				"import %q cannot be resolved without a template directory", imp.File)
			continue
		}

		data, err := fs.ReadFile(l.fsys, target)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, fs.ErrNotExist) {
				msg = "file not found"
			}
			defs.issue(SeverityError, CodeUnresolvedImport, st.Path, issuePath, imp.Line,
				"import %q: %s", imp.File, msg)
			continue
		}
		child, err := parseNamed(target, data)
		if err != nil {
			var pe *ParseError
			line := 0
			if errors.As(err, &pe) {
				line = pe.Line
			}
			defs.issue(SeverityError, CodeParseError, target, "", line, "%v", errors.Unwrap(err))
			continue
		}

		util.WithTemplate(target).Debugf("Imported by %s", st.Path)
		defs.Templates[target] = child
		defs.Order = append(defs.Order, target)
		stack[target] = true
		l.resolveImports(defs, child, stack)
		delete(stack, target)
	}
}

func (d *Definitions) issue(sev Severity, code, file, p string, line int, format string, args ...any) {
	d.Issues = append(d.Issues, Issue{
		Severity: sev,
		Code:     code,
		File:     file,
		Path:     p,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

func isWellKnownImport(file string) bool {
	return wellKnownImports[file] || wellKnownImports[path.Base(file)]
}
