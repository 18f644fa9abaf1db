package csar

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/nfvpack/nfvpack/pkg/util"
)

// DefaultAuthor is written to Created-By when no author is given.
const DefaultAuthor = "nfvpack"

// PackOptions describes an archive to build.
type PackOptions struct {
	// Source is a directory or an existing ZIP archive.
	Source string
	// Entry is the entry template path inside the archive. When empty the
	// single YAML file at the root of Source is used.
	Entry string
	// Author is written to Created-By.
	Author string
	// Description is written to TOSCA.meta when set.
	Description string
	// Output is the archive path. It is replaced atomically.
	Output string
}

type packEntry struct {
	name string
	open func() (io.ReadCloser, error)
	zf   *zip.File
}

// Pack builds a CSAR with a generated TOSCA.meta and opens the result.
// An existing TOSCA.meta in Source is replaced.
func Pack(ctx context.Context, opts PackOptions) (*Package, error) {
	if opts.Source == "" {
		return nil, util.NewValidationError("source is required")
	}
	if opts.Output == "" {
		return nil, util.NewValidationError("output is required")
	}
	log := util.WithPackage(opts.Output)

	info, err := os.Stat(opts.Source)
	if err != nil {
		return nil, util.NewPackageError(opts.Source, "cannot read source", err)
	}

	var entries []packEntry
	if info.IsDir() {
		entries, err = dirEntries(opts.Source, opts.Output)
	} else {
		var zr *zip.ReadCloser
		zr, err = zip.OpenReader(opts.Source)
		if err != nil {
			return nil, util.NewPackageError(opts.Source, "not a ZIP archive", err)
		}
		defer zr.Close()
		entries = zipEntries(zr)
	}
	if err != nil {
		return nil, util.NewPackageError(opts.Source, "cannot list contents", err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	entry, err := packEntryDefinitions(opts, names)
	if err != nil {
		return nil, err
	}

	meta := NewMeta(util.CoalesceString(opts.Author, DefaultAuthor), entry)
	meta.Description = opts.Description
	if err := writeArchive(ctx, opts.Output, meta, entries); err != nil {
		return nil, err
	}
	log.Infof("Packed %d files, entry %s", len(entries), entry)

	return Open(ctx, opts.Output)
}

func packEntryDefinitions(opts PackOptions, names []string) (string, error) {
	if opts.Entry != "" {
		entry := path.Clean(filepath.ToSlash(opts.Entry))
		i := sort.SearchStrings(names, entry)
		if i == len(names) || names[i] != entry {
			return "", util.NewPackageError(opts.Source, fmt.Sprintf("entry %q not found", opts.Entry), nil)
		}
		return entry, nil
	}
	roots := rootTemplates(names)
	if len(roots) != 1 {
		return "", util.NewPackageError(opts.Source,
			fmt.Sprintf("found %d YAML files at the root, pass the entry template explicitly", len(roots)), nil)
	}
	return roots[0], nil
}

// dirEntries lists the regular files under dir, skipping TOSCA.meta and the
// output archive itself.
func dirEntries(dir, output string) ([]packEntry, error) {
	outAbs, _ := filepath.Abs(output)
	var entries []packEntry
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(p); abs == outAbs {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == MetaFile {
			return nil
		}
		entries = append(entries, packEntry{
			name: name,
			open: func() (io.ReadCloser, error) { return os.Open(p) },
		})
		return nil
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, err
}

func zipEntries(zr *zip.ReadCloser) []packEntry {
	var entries []packEntry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || f.Name == MetaFile {
			continue
		}
		entries = append(entries, packEntry{name: f.Name, zf: f})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries
}

func writeArchive(ctx context.Context, output string, meta *Meta, entries []packEntry) error {
	pendingFile, err := renameio.NewPendingFile(output)
	if err != nil {
		return fmt.Errorf("failed to create pending file: %w", err)
	}
	defer pendingFile.Cleanup()

	zw := zip.NewWriter(pendingFile)
	metaData, err := meta.Marshal()
	if err != nil {
		return err
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: MetaFile, Method: zip.Deflate})
	if err != nil {
		return err
	}
	if _, err := w.Write(metaData); err != nil {
		return err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.zf != nil {
			if err := zw.Copy(e.zf); err != nil {
				return fmt.Errorf("copying %s: %w", e.name, err)
			}
			continue
		}
		if err := addFile(zw, e); err != nil {
			return fmt.Errorf("adding %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace %s: %w", output, err)
	}
	return nil
}

func addFile(zw *zip.Writer, e packEntry) error {
	r, err := e.open()
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

// contentType guesses the MIME type of an artifact from its extension.
func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".qcow2", ".img", ".iso", ".vmdk":
		return "application/octet-stream"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".sh":
		return "application/x-sh"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
