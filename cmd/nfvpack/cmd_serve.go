package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfvpack/nfvpack/pkg/api"
	"github.com/nfvpack/nfvpack/pkg/catalog"
	"github.com/nfvpack/nfvpack/pkg/util"
)

var (
	serveListen    string
	serveStrict    bool
	serveRateLimit int
	serveNoCatalog bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the validation and onboarding API",
	Long: `Serve the HTTP API.

Endpoints:
  POST   /v1/templates/validate           YAML body, returns the report
  POST   /v1/packages                     CSAR body, validates and onboards
  GET    /v1/packages                     latest descriptor of each package
  GET    /v1/packages/{name}              versions and latest descriptor
  GET    /v1/packages/{name}/{version}    one descriptor
  DELETE /v1/packages/{name}/{version}    remove one version
  GET    /healthz                         liveness and catalog reachability
  GET    /metrics                         Prometheus metrics

Examples:
  nfvpack serve
  nfvpack serve --listen 0.0.0.0:9000 --catalog redis:6379 --strict`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := api.Config{
			Addr:              util.CoalesceString(serveListen, userSettings.GetListenAddr()),
			RequestLimit:      serveRateLimit,
			RateWindow:        time.Minute,
			Strict:            serveStrict,
			VersionConstraint: userSettings.CSARVersionConstraint,
			User:              currentUser(),
		}

		var cat api.Catalog
		if !serveNoCatalog {
			addr := util.CoalesceString(catalogAddr, userSettings.GetCatalogAddr())
			c := catalog.New(addr)
			defer c.Close()
			if err := c.Connect(ctx); err != nil {
				util.Warnf("Catalog %s unreachable, /healthz reports degraded: %v", addr, err)
			}
			cat = c
		}

		util.SetLogLevel(serverLogLevel())
		return api.NewServer(cfg, cat).ListenAndServe(ctx)
	},
}

// serverLogLevel is info, or debug with -v to include request logs.
func serverLogLevel() string {
	if verbose {
		return "debug"
	}
	return "info"
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default: listen_addr setting or :8080)")
	serveCmd.Flags().BoolVar(&serveStrict, "strict", false, "Report warnings as errors")
	serveCmd.Flags().IntVar(&serveRateLimit, "rate-limit", 120, "Requests per minute per client IP")
	serveCmd.Flags().BoolVar(&serveNoCatalog, "no-catalog", false, "Serve validation only")
	addCatalogFlag(serveCmd)
}
