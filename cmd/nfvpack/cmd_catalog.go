package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfvpack/nfvpack/pkg/audit"
	"github.com/nfvpack/nfvpack/pkg/cli"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the package catalog",
	Long: `Query and maintain the Redis-backed package catalog.

Examples:
  nfvpack catalog list
  nfvpack catalog show vnffg-sample
  nfvpack catalog show vnffg-sample 1.0
  nfvpack catalog delete vnffg-sample 1.0`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List packages (latest version of each)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cat.Close()

		list, err := cat.List(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(list)
		}

		t := cli.NewTable("NAME", "VERSION", "AUTHOR", "NODES", "ONBOARDED").WithEmpty("No packages onboarded")
		for _, d := range list {
			t.Row(d.Name, d.Version, d.Author, strconv.Itoa(d.NodeCount),
				d.OnboardedAt.Local().Format("2006-01-02 15:04"))
		}
		t.Flush()
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <name> [version]",
	Short: "Show a package descriptor",
	Long: `Show a package descriptor. Without a version the latest is shown,
together with every onboarded version.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cat, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		name := args[0]
		versions, err := cat.Versions(ctx, name)
		if err != nil {
			return err
		}
		version := versions[len(versions)-1]
		if len(args) == 2 {
			version = args[1]
		}
		d, err := cat.Get(ctx, name, version)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(d)
		}

		fmt.Printf("%s %s\n\n", cli.Bold(d.Name), d.Version)
		t := cli.NewTable("FIELD", "VALUE").WithPrefix("  ")
		t.Row("ID", d.ID)
		t.Row("Author", d.Author)
		t.Row("Description", d.Description)
		t.Row("Entry-Definitions", d.Entry)
		t.Row("CSAR-Version", d.CSARVersion)
		t.Row("Digest", d.Digest)
		t.Row("Size", strconv.FormatInt(d.Size, 10)+" bytes")
		t.Row("Nodes", strconv.Itoa(d.NodeCount))
		t.Row("Groups", strconv.Itoa(d.GroupCount))
		t.Row("Files", strconv.Itoa(d.Files))
		t.Row("Onboarded", d.OnboardedAt.Local().Format(time.RFC3339))
		t.Flush()

		fmt.Printf("\nVersions:")
		for _, v := range versions {
			if v == d.Version {
				v = cli.Bold(v)
			}
			fmt.Printf(" %s", v)
		}
		fmt.Println()
		return nil
	},
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <name> <version>",
	Short: "Remove a package version from the catalog",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		name, version := args[0], args[1]
		event := audit.NewEvent(currentUser(), audit.OpPackageDelete, name+"/"+version).
			WithPackage(name, version, "")

		cat, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cat.Close()

		if err := cat.Delete(cmd.Context(), name, version); err != nil {
			logEvent(event.WithError(err).WithDuration(time.Since(start)))
			return err
		}
		logEvent(event.WithSuccess().WithDuration(time.Since(start)))
		fmt.Printf("Deleted %s %s\n", name, version)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{catalogListCmd, catalogShowCmd} {
		addOutputFlags(c)
	}
	catalogCmd.PersistentFlags().StringVar(&catalogAddr, "catalog", "", "Catalog Redis address (default: catalog_addr setting)")
	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogDeleteCmd)
}
