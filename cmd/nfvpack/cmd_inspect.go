package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nfvpack/nfvpack/pkg/cli"
	"github.com/nfvpack/nfvpack/pkg/csar"
	"github.com/nfvpack/nfvpack/pkg/tosca"
)

// packageInfo is the JSON form of inspect.
type packageInfo struct {
	Source           string            `json:"source"`
	EntryDefinitions string            `json:"entry_definitions"`
	MetaFileVersion  string            `json:"meta_file_version,omitempty"`
	CSARVersion      string            `json:"csar_version"`
	Author           string            `json:"author"`
	TemplateName     string            `json:"template_name"`
	TemplateVersion  string            `json:"template_version"`
	Description      string            `json:"description,omitempty"`
	Digest           string            `json:"digest,omitempty"`
	Size             int64             `json:"size,omitempty"`
	Files            []string          `json:"files"`
	References       []tosca.Reference `json:"references,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <csar>",
	Short: "Show package metadata",
	Long: `Show the metadata, entry template, files and external references of a
CSAR package without validating it.

Examples:
  nfvpack inspect vnf.csar
  nfvpack inspect --json https://example.com/vnf.csar`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := csar.Open(cmd.Context(), args[0],
			csar.WithVersionConstraint(userSettings.CSARVersionConstraint))
		if err != nil {
			return err
		}

		info := packageInfo{
			Source:           pkg.Source(),
			EntryDefinitions: pkg.EntryDefinitions(),
			MetaFileVersion:  pkg.MetaFileVersion(),
			CSARVersion:      pkg.Version(),
			Author:           pkg.Author(),
			TemplateName:     pkg.TemplateName(),
			TemplateVersion:  pkg.TemplateVersion(),
			Description:      pkg.Description(),
			Digest:           pkg.Digest(),
			Size:             pkg.Size(),
			Files:            pkg.Files(),
		}
		if st, err := pkg.Template(); err == nil {
			info.References = st.ExternalReferences()
		}

		if jsonOutput {
			return printJSON(info)
		}

		fmt.Println(cli.Bold(info.Source))
		fmt.Println()
		t := cli.NewTable("FIELD", "VALUE").WithPrefix("  ")
		row := func(k, v string) {
			if v == "" {
				v = "-"
			}
			t.Row(k, v)
		}
		row("Entry-Definitions", info.EntryDefinitions)
		row("TOSCA-Meta-File-Version", info.MetaFileVersion)
		row("CSAR-Version", info.CSARVersion)
		row("Created-By", info.Author)
		row("Template", info.TemplateName+" "+info.TemplateVersion)
		row("Description", info.Description)
		row("Digest", info.Digest)
		if info.Size > 0 {
			row("Size", strconv.FormatInt(info.Size, 10)+" bytes")
		}
		t.Flush()

		fmt.Printf("\n%s\n", cli.Bold(cli.Plural(len(info.Files), "file")))
		for _, f := range info.Files {
			fmt.Fprintf(os.Stdout, "  %s\n", f)
		}

		if len(info.References) > 0 {
			fmt.Printf("\n%s\n", cli.Bold(cli.Plural(len(info.References), "external reference")))
			rt := cli.NewTable("PATH", "TARGET").WithPrefix("  ")
			for _, r := range info.References {
				rt.Row(r.Path, r.Target)
			}
			rt.Flush()
		}
		return nil
	},
}

func init() {
	addOutputFlags(inspectCmd)
}
