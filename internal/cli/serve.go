// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/rest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the passkey REST server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		slog.Info("Starting passkey server",
			"rp_id", cfg.RelyingParty.RPID,
			"storage", cfg.Storage.Driver,
			"port", cfg.Server.Port)

		srv, err := rest.New(cfg)
		if err != nil {
			return err
		}

		shutdownCtx := setupSignalHandler()

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errChan <- err
			}
		}()

		select {
		case <-shutdownCtx.Done():
			slog.Info("Shutdown signal received")
		case err := <-errChan:
			slog.Error("Server error", slog.Any("error", err))
		}

		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(shutdownTimeout); err != nil {
			slog.Error("Error during server shutdown", slog.Any("error", err))
			return err
		}

		slog.Info("Server stopped successfully")
		return nil
	},
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
