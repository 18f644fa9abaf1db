package tosca

import (
	"context"
	"errors"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/nfvpack/nfvpack/pkg/util"
)

// CheckFile loads a local template and checks it. Parse failures are
// returned as a report holding a single parse-error issue; only I/O failures
// are returned as errors.
func CheckFile(file string, opts CheckOptions) (*Report, error) {
	defs, err := LoadFile(file)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			r := NewReport(file)
			r.Errorf(CodeParseError, file, "", pe.Line, "%v", pe.Err)
			return r, nil
		}
		return nil, err
	}
	r := Check(defs, opts)
	r.Source = file
	for i := range r.Issues {
		if r.Issues[i].File != "" {
			r.Issues[i].File = filepath.Join(defs.Root, filepath.FromSlash(r.Issues[i].File))
		}
	}
	return r, nil
}

// CheckBytes checks a standalone document. Imports other than the well-known
// profiles cannot be resolved and are reported as such.
func CheckBytes(name string, data []byte, opts CheckOptions) *Report {
	defs, err := NewLoader(nil).LoadBytes(name, data)
	if err != nil {
		r := NewReport(name)
		var pe *ParseError
		if errors.As(err, &pe) {
			r.Errorf(CodeParseError, name, "", pe.Line, "%v", pe.Err)
		} else {
			r.Errorf(CodeParseError, name, "", 0, "%v", err)
		}
		return r
	}
	r := Check(defs, opts)
	r.Source = name
	return r
}

// CheckFiles checks files concurrently with at most parallelism workers and
// returns the reports in input order. The first I/O error cancels the rest.
func CheckFiles(ctx context.Context, files []string, opts CheckOptions, parallelism int) ([]*Report, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	reports := make([]*Report, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := CheckFile(file, opts)
			if err != nil {
				return err
			}
			util.WithTemplate(file).Debugf("%d issues", len(r.Issues))
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
