// nfvpack - TOSCA template and CSAR package tool
//
// Validates TOSCA Simple/NFV profile service templates, reports every
// reference that does not resolve, packs and inspects CSAR archives, and
// onboards validated packages into a Redis-backed catalog.
//
// Examples:
//
//	nfvpack validate tosca-vnffg.yaml                # check one template
//	nfvpack validate --strict --json defs/ vnf.csar  # templates and packages
//	nfvpack validate --watch defs/                   # re-check on every save
//	nfvpack pack ./vnf -o vnf.csar                   # build a CSAR
//	nfvpack inspect vnf.csar                         # show package metadata
//	nfvpack onboard vnf.csar                         # validate and register
//	nfvpack serve --listen :8080                     # HTTP API
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nfvpack/nfvpack/pkg/audit"
	"github.com/nfvpack/nfvpack/pkg/settings"
	"github.com/nfvpack/nfvpack/pkg/util"
	"github.com/nfvpack/nfvpack/pkg/version"
)

var (
	verbose    bool
	logFormat  string
	jsonOutput bool

	userSettings *settings.Settings
)

// errInvalid is returned when a document or package has errors. The report
// has already been printed, so main exits without repeating it.
var errInvalid = errors.New("validation failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errInvalid) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:               "nfvpack",
	Short:             "TOSCA template and CSAR package tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Nfvpack checks TOSCA service templates and CSAR packages.

Every reference that does not resolve (types, requirements, imports,
function targets, group members) is reported with its file and line.
Packages can be built, inspected, and onboarded into a catalog.

Exit status: 0 when valid, 1 when errors were found, 2 on failure.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		if err := util.SetLogFormat(logFormat); err != nil {
			return err
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		if skipsAudit(cmd) {
			return nil
		}
		auditLogger, err := audit.NewFileLogger(userSettings.GetAuditLog(), audit.RotationConfig{
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxBackups: 5,
		})
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}
		return nil
	},
}

// skipsAudit reports whether cmd runs without opening the audit log.
func skipsAudit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "settings", "version", "help", "inspect":
			return true
		}
	}
	return false
}

// currentUser names the actor recorded in audit events.
func currentUser() string {
	return util.CoalesceString(os.Getenv("USER"), "unknown")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		validateCmd,
		inspectCmd,
		packCmd,
		onboardCmd,
		catalogCmd,
		serveCmd,
		settingsCmd,
		auditCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				if version.Version == "dev" {
					fmt.Println("nfvpack dev build (set version.Version via -ldflags for release info)")
				} else {
					fmt.Printf("nfvpack %s\n", version.Info())
				}
			},
		},
	)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
}
