package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfvpack/nfvpack/pkg/audit"
	"github.com/nfvpack/nfvpack/pkg/cli"
	"github.com/nfvpack/nfvpack/pkg/csar"
	"github.com/nfvpack/nfvpack/pkg/tosca"
	"github.com/nfvpack/nfvpack/pkg/util"
)

var (
	packOutput      string
	packEntry       string
	packAuthor      string
	packDescription string
)

var packCmd = &cobra.Command{
	Use:   "pack <dir|zip>",
	Short: "Build a CSAR package",
	Long: `Build a CSAR from a directory or repack an existing ZIP.

A fresh TOSCA-Metadata/TOSCA.meta is written (CSAR-Version 1.1), replacing
any existing one. The entry template defaults to the only YAML file at the
root of the source. The archive is written atomically, then validated.

Without -o the archive is named after the source and placed in the
output_dir setting, or the current directory.

Examples:
  nfvpack pack ./vnf -o vnf.csar
  nfvpack pack ./vnf --entry Definitions/main.yaml --author alice
  nfvpack pack old.zip -o repacked.csar`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		src := args[0]

		output := packOutput
		if output == "" {
			abs, err := filepath.Abs(src)
			if err != nil {
				return err
			}
			base := filepath.Base(abs)
			output = strings.TrimSuffix(base, filepath.Ext(base)) + ".csar"
		}
		output = userSettings.OutputPath(output)

		event := audit.NewEvent(currentUser(), audit.OpPackagePack, src)
		pkg, err := csar.Pack(cmd.Context(), csar.PackOptions{
			Source:      src,
			Entry:       packEntry,
			Author:      util.CoalesceString(packAuthor, userSettings.GetAuthor()),
			Description: packDescription,
			Output:      output,
		})
		if err != nil {
			logEvent(event.WithError(err).WithDuration(time.Since(start)))
			return err
		}
		event.WithPackage(pkg.TemplateName(), pkg.TemplateVersion(), pkg.Digest())

		report, err := pkg.Validate(cmd.Context(), csar.ValidateOptions{})
		if err != nil {
			logEvent(event.WithError(err).WithDuration(time.Since(start)))
			return err
		}
		event.WithCounts(len(report.Errors()), len(report.Warnings())).WithDuration(time.Since(start))
		if report.OK() {
			event.WithSuccess()
		} else {
			event.WithError(report.Err())
		}
		logEvent(event)

		fmt.Printf("Packed %s (%s, entry %s)\n", cli.Bold(output),
			cli.Plural(len(pkg.Files()), "file"), pkg.EntryDefinitions())
		if len(report.Issues) == 0 {
			return nil
		}
		fmt.Println()
		return printReports(os.Stdout, []*tosca.Report{report})
	},
}

func init() {
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "Output archive path")
	packCmd.Flags().StringVar(&packEntry, "entry", "", "Entry template, relative to the source root")
	packCmd.Flags().StringVar(&packAuthor, "author", "", "Created-By (default: default_author setting)")
	packCmd.Flags().StringVar(&packDescription, "description", "", "Description written to TOSCA.meta")
}

func logEvent(e *audit.Event) {
	if err := audit.Log(e); err != nil {
		util.Warnf("Audit log: %v", err)
	}
}
