package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nfvpack/nfvpack/pkg/audit"
	"github.com/nfvpack/nfvpack/pkg/cli"
	"github.com/nfvpack/nfvpack/pkg/csar"
	"github.com/nfvpack/nfvpack/pkg/tosca"
	"github.com/nfvpack/nfvpack/pkg/util"
	"github.com/nfvpack/nfvpack/pkg/watch"
)

var (
	validateStrict   bool
	validateWatch    bool
	validateParallel int
	validateIgnore   []string
	validateProbe    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <path|url>...",
	Short: "Check templates and packages",
	Long: `Check TOSCA templates and CSAR packages.

Each argument is a YAML template, a directory, a .csar/.zip archive, or an
http(s) URL of an archive. A directory holding TOSCA-Metadata/TOSCA.meta is
checked as an unpacked package; any other directory contributes the YAML
files at its top level.

Examples:
  nfvpack validate tosca-vnffg.yaml
  nfvpack validate --strict defs/ vnf.csar
  nfvpack validate --ignore missing-content-type --json vnf.csar
  nfvpack validate --watch defs/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sources, err := expandSources(args)
		if err != nil {
			return err
		}

		if !validateWatch {
			reports, err := validateSources(ctx, sources)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printReportsJSON(reports)
			}
			return printReports(os.Stdout, reports)
		}

		run := func(ctx context.Context) {
			reports, err := validateSources(ctx, rescanSources(args))
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return
			}
			fmt.Println(cli.Bold(time.Now().Format("15:04:05")))
			printReports(os.Stdout, reports)
		}
		run(ctx)

		var watched []string
		for _, s := range args {
			if !isRemote(s) {
				watched = append(watched, s)
			}
		}
		fmt.Println(cli.Dim("Watching for changes, Ctrl-C to stop"))
		w := watch.New(watched, watch.DefaultDebounce, func(ctx context.Context, changed []string) {
			util.Debugf("Changed: %s", strings.Join(changed, ", "))
			run(ctx)
		})
		return w.Run(ctx)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Report warnings as errors")
	validateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "Re-check when files change")
	validateCmd.Flags().IntVarP(&validateParallel, "parallel", "p", 4, "Sources checked concurrently")
	validateCmd.Flags().StringSliceVar(&validateIgnore, "ignore", nil, "Issue codes to drop (comma-separated)")
	validateCmd.Flags().BoolVar(&validateProbe, "probe-urls", false, "Probe remote references in packages with HEAD")
	addOutputFlags(validateCmd)
}

// source is one thing to validate.
type source struct {
	path    string
	archive bool
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isArchiveName(s string) bool {
	switch strings.ToLower(filepath.Ext(s)) {
	case ".csar", ".zip":
		return true
	}
	return false
}

// expandSources classifies the arguments and expands plain directories into
// their top-level templates.
func expandSources(args []string) ([]source, error) {
	var out []source
	for _, arg := range args {
		if isRemote(arg) || isArchiveName(arg) {
			out = append(out, source{path: arg, archive: true})
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, source{path: arg})
			continue
		}
		if _, err := os.Stat(filepath.Join(arg, filepath.FromSlash(csar.MetaFile))); err == nil {
			out = append(out, source{path: arg, archive: true})
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && watch.IsTemplate(e.Name()) {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("%s: no YAML templates", arg)
		}
		sort.Strings(files)
		for _, f := range files {
			out = append(out, source{path: f})
		}
	}
	return out, nil
}

// rescanSources expands the arguments again for a watch cycle. An argument
// that no longer exists stays in the list so its report says so; one that
// expands to nothing is skipped.
func rescanSources(args []string) []source {
	var out []source
	for _, arg := range args {
		expanded, err := expandSources([]string{arg})
		switch {
		case err == nil:
			out = append(out, expanded...)
		case errors.Is(err, fs.ErrNotExist):
			out = append(out, source{path: arg})
		default:
			util.Warnf("Skipping %s: %v", arg, err)
		}
	}
	return out
}

func checkOptions() tosca.CheckOptions {
	return tosca.CheckOptions{Strict: validateStrict, Ignore: validateIgnore}
}

// validateSources checks templates and packages concurrently and returns the
// reports in source order.
func validateSources(ctx context.Context, sources []source) ([]*tosca.Report, error) {
	reports := make([]*tosca.Report, len(sources))

	var files []string
	var fileIdx []int
	for i, s := range sources {
		if s.archive {
			continue
		}
		if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
			reports[i] = missingSource(s.path)
			continue
		}
		files = append(files, s.path)
		fileIdx = append(fileIdx, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(validateParallel, 1))
	for i, s := range sources {
		if !s.archive {
			continue
		}
		g.Go(func() error {
			r, err := validatePackage(gctx, s.path)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if len(files) > 0 {
		checked, err := tosca.CheckFiles(ctx, files, checkOptions(), validateParallel)
		if err != nil {
			g.Wait()
			return nil, err
		}
		for j, r := range checked {
			reports[fileIdx[j]] = r
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, r := range reports {
		op := audit.OpTemplateValidate
		if sources[i].archive {
			op = audit.OpPackageValidate
		}
		logValidation(op, r)
	}
	return reports, nil
}

// codeMissingSource marks a template that disappeared before it was read.
const codeMissingSource = "missing-source"

func missingSource(path string) *tosca.Report {
	r := tosca.NewReport(path)
	r.Errorf(codeMissingSource, path, "", 0, "%s no longer exists", path)
	return r
}

// validatePackage opens and validates one package. A malformed archive is a
// finding, not a failure of the run.
func validatePackage(ctx context.Context, path string) (*tosca.Report, error) {
	pkg, err := csar.Open(ctx, path, csar.WithVersionConstraint(userSettings.CSARVersionConstraint))
	if err != nil {
		if errors.Is(err, util.ErrInvalidPackage) || errors.Is(err, util.ErrUnsupportedVersion) {
			r := tosca.NewReport(path)
			r.Errorf(tosca.CodeParseError, path, "", 0, "%v", err)
			return r, nil
		}
		return nil, err
	}
	return pkg.Validate(ctx, csar.ValidateOptions{Check: checkOptions(), ProbeURLs: validateProbe})
}

func logValidation(op string, r *tosca.Report) {
	event := audit.NewEvent(currentUser(), op, r.Source).
		WithCounts(len(r.Errors()), len(r.Warnings()))
	if r.OK() {
		event.WithSuccess()
	} else {
		event.WithError(r.Err())
	}
	logEvent(event)
}
