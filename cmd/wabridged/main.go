package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/fleetdesk/wabridge/internal/config"
	"github.com/fleetdesk/wabridge/internal/daemon"
	"github.com/fleetdesk/wabridge/internal/session"
)

func main() {
	dataDirFlag := flag.String("data-dir", "", "data directory (overrides WABRIDGE_DATA_DIR)")
	tenantsFlag := flag.String("tenants", "", "tenants file (overrides WABRIDGE_TENANTS_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *dataDirFlag != "" {
		cfg.DataDir = *dataDirFlag
	}
	if cfg.DataDir == "" {
		cfg.DataDir = session.DefaultDataDir()
	}
	if *tenantsFlag != "" {
		cfg.TenantsFile = *tenantsFlag
	}
	if cfg.TenantsFile == "" {
		cfg.TenantsFile = session.TenantsPath(cfg.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Cfg: cfg}),
	)

	app.Run()
}
