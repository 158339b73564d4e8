package main

import (
	"fmt"
	"os"
	"time"

	"medigateway/api/server"
	"medigateway/core/audit"
	"medigateway/core/config"
	"medigateway/core/ledger"
	"medigateway/core/logging"
	"medigateway/core/validation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.Env)

	auditStore, err := audit.OpenStore(cfg.AuditDBPath, log)
	if err != nil {
		return err
	}
	defer auditStore.Close()

	validator, err := validation.NewFormValidator()
	if err != nil {
		return fmt.Errorf("compile form schema: %w", err)
	}

	connector := &ledger.FabricConnector{
		CCPPath:       cfg.CCPPath,
		WalletPath:    cfg.WalletPath,
		IdentityLabel: cfg.IdentityLabel,
		Channel:       cfg.Channel,
		ContractID:    cfg.ContractID,
		Timeout:       time.Duration(cfg.LedgerTimeout),
		Log:           log,
	}
	manager := ledger.NewManager(connector, log)

	srv := server.NewServer(cfg, log, manager, validator, auditStore)
	return srv.Start()
}
