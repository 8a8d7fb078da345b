package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bollustrado/mortimmy/internal/api"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the add-on server",
	Long: `Serves the capabilities descriptor, the install and uninstall callbacks, webhook
deliveries and glances, and keeps the access token of every installation fresh.
The admin API under /v1/admin is only enabled when an admin key is configured.`,
	Example: `  mortimmy serve -c mortimmy.yaml
  MORTIMMY_ADMIN_KEY=changeme mortimmy serve -c mortimmy.yaml --ephemeral`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		ephemeral, _ := cmd.Flags().GetBool("ephemeral")

		a, err := buildAddon(cfg, ephemeral)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to release resources")
			}
		}()

		adminKey := adminKeyFrom(cmd)
		if adminKey == "" {
			log.Warn().Msg("No admin key configured, admin API is disabled")
		}

		srv := api.NewServer(a.controller, a.registry, a.store, a.notifier, a.tasks, a.auditor, a.refresher)
		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           srv.Routes([]byte(adminKey)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)

		a.tasks.Start(ctx)

		g.Go(func() error {
			log.Info().Msgf("Starting server on %s (base url %s)...", cfg.Server.Addr, cfg.BaseURL)
			var err error
			if cfg.Server.TLSEnabled() {
				err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server crashed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			log.Info().Msg("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			return nil
		})

		err = g.Wait()
		a.tasks.Wait()
		if err != nil {
			return err
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f.bindConfigFlag(serveCmd.Flags())
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().Bool("ephemeral", false, "Keep installations and audit entries in memory only")
	bindAdminKeyFlag(serveCmd)
}
