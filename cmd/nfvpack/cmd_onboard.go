package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfvpack/nfvpack/pkg/audit"
	"github.com/nfvpack/nfvpack/pkg/catalog"
	"github.com/nfvpack/nfvpack/pkg/cli"
	"github.com/nfvpack/nfvpack/pkg/csar"
	"github.com/nfvpack/nfvpack/pkg/tosca"
	"github.com/nfvpack/nfvpack/pkg/util"
)

var (
	catalogAddr  string
	onboardForce bool
)

var onboardCmd = &cobra.Command{
	Use:   "onboard <csar>",
	Short: "Validate a package and register it in the catalog",
	Long: `Validate a CSAR and record its descriptor in the catalog.

Onboarding is refused when validation reports errors. Onboarding the same
archive twice is a no-op; a different archive under an existing name and
version is rejected.

Examples:
  nfvpack onboard vnf.csar
  nfvpack onboard --catalog redis:6379 https://example.com/vnf.csar`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		ctx := cmd.Context()
		event := audit.NewEvent(currentUser(), audit.OpPackageOnboard, args[0])
		fail := func(err error) error {
			logEvent(event.WithError(err).WithDuration(time.Since(start)))
			return err
		}

		pkg, err := csar.Open(ctx, args[0], csar.WithVersionConstraint(userSettings.CSARVersionConstraint))
		if err != nil {
			return fail(err)
		}
		report, err := pkg.Validate(ctx, csar.ValidateOptions{Check: checkOptions()})
		if err != nil {
			return fail(err)
		}
		event.WithCounts(len(report.Errors()), len(report.Warnings()))
		if !report.OK() {
			logEvent(event.WithError(report.Err()).WithDuration(time.Since(start)))
			return printReports(os.Stdout, []*tosca.Report{report})
		}

		desc, err := catalog.NewDescriptor(pkg)
		if err != nil {
			return fail(err)
		}
		event.WithPackage(desc.Name, desc.Version, desc.Digest)

		cat, err := openCatalog(ctx)
		if err != nil {
			return fail(err)
		}
		defer cat.Close()

		if onboardForce {
			if err := cat.Delete(ctx, desc.Name, desc.Version); err != nil && !errors.Is(err, util.ErrNotFound) {
				return fail(err)
			}
		}
		stored, created, err := cat.Onboard(ctx, desc)
		if err != nil {
			return fail(err)
		}
		logEvent(event.WithSuccess().WithDuration(time.Since(start)))

		if jsonOutput {
			return printJSON(stored)
		}
		if created {
			fmt.Printf("%s %s %s onboarded (%s)\n", cli.Green("✓"), stored.Name, stored.Version, stored.ID)
		} else {
			fmt.Printf("%s %s %s already onboarded (%s)\n", cli.Dim("="), stored.Name, stored.Version, stored.ID)
		}
		if n := len(report.Warnings()); n > 0 {
			fmt.Println(cli.Yellow(cli.Plural(n, "warning")) + " (run validate for details)")
		}
		return nil
	},
}

func init() {
	onboardCmd.Flags().BoolVar(&onboardForce, "force", false, "Replace an existing entry with the same name and version")
	addOutputFlags(onboardCmd)
	addCatalogFlag(onboardCmd)
	onboardCmd.Flags().BoolVar(&validateStrict, "strict", false, "Report warnings as errors")
	onboardCmd.Flags().StringSliceVar(&validateIgnore, "ignore", nil, "Issue codes to drop (comma-separated)")
}

func addCatalogFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&catalogAddr, "catalog", "", "Catalog Redis address (default: catalog_addr setting)")
}

// openCatalog connects to the catalog named by --catalog or the settings.
func openCatalog(ctx context.Context) (*catalog.Catalog, error) {
	addr := util.CoalesceString(catalogAddr, userSettings.GetCatalogAddr())
	cat := catalog.New(addr)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cat.Connect(ctx); err != nil {
		cat.Close()
		return nil, fmt.Errorf("catalog %s: %w", addr, err)
	}
	return cat, nil
}
