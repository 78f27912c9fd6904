// Copyright (c) 2025 ysam020
//
// This file is part of hrms-sub000.
//
// hrms-sub000 is licensed under the GNU Affero General Public License v3.0
// (AGPL-3.0). See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ysam020/hrms-sub000/internal/config"
	"github.com/ysam020/hrms-sub000/internal/server"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/hrms/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("hrms authentication server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("HRMS_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	slog.Info("Starting hrms authentication server",
		"config", *configPath,
		"version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Configuration loaded successfully",
		"rp_id", cfg.WebAuthn.RPID,
		"storage", cfg.Storage.Backend)

	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("Failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup signal handler for graceful shutdown
	shutdownCtx := server.SetupSignalHandler()

	if err := srv.Start(); err != nil {
		slog.Error("Failed to start server", slog.Any("error", err))
		os.Exit(1)
	}

	// Wait for shutdown signal
	<-shutdownCtx.Done()

	if err := srv.Shutdown(); err != nil {
		slog.Error("Error during shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
