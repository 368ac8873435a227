// GridPilot — account-manager gateway for volunteer-computing devices.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vesaa/gridpilot/internal/config"
	"github.com/vesaa/gridpilot/internal/proxy"
	"github.com/vesaa/gridpilot/internal/server"
	"github.com/vesaa/gridpilot/internal/store"
)

const asciiLogo = `
  ██████╗ ██████╗ ██╗██████╗ ██████╗ ██╗██╗      ██████╗ ████████╗
 ██╔════╝ ██╔══██╗██║██╔══██╗██╔══██╗██║██║     ██╔═══██╗╚══██╔══╝
 ██║  ███╗██████╔╝██║██║  ██║██████╔╝██║██║     ██║   ██║   ██║
 ██║   ██║██╔══██╗██║██║  ██║██╔═══╝ ██║██║     ██║   ██║   ██║
 ╚██████╔╝██║  ██║██║██████╔╝██║     ██║███████╗╚██████╔╝   ██║
  ╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝ ╚═╝     ╚═╝╚══════╝ ╚═════╝    ╚═╝
`

const version = "v0.1.0"

func printBanner() {
	fmt.Print(asciiLogo + "\n")
	fmt.Printf("  ► GridPilot %s  |  volunteer-computing gateway\n\n", version)
}

func main() {
	root := &cobra.Command{
		Use:   "gridpilot",
		Short: "GridPilot — account-manager gateway for volunteer computing",
		Long: `GridPilot sits between volunteer-computing devices and independent
upstream compute projects: it relays per-project scheduler traffic, records
what work each device was sent, and steers each device's capacity across
projects based on that history.`,
		SilenceUsage: true,
	}

	// ── serve subcommand ──────────────────────────────────────────────────────
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GridPilot gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			zerolog.TimeFieldFormat = time.RFC3339Nano
			log := zerolog.New(os.Stdout).With().
				Timestamp().
				Str("service", "gridpilot").
				Logger()

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("opening work-unit store: %w", err)
			}
			defer st.Close()

			reg, err := config.BuildRegistry(cfg)
			if err != nil {
				return fmt.Errorf("building project registry: %w", err)
			}

			relay := proxy.NewRelay(reg, st,
				time.Duration(cfg.UpstreamTimeoutSeconds)*time.Second, log)
			srv := server.New(cfg, reg, st, relay, log)

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(gin.Recovery(), server.AccessLog(log))
			srv.RegisterRoutes(engine)

			addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
			fmt.Printf("  ✓ Gateway listening on http://%s\n", addr)
			fmt.Printf("  ✓ Projects registered: %d\n", len(reg.Projects))
			if cfg.RetentionDays > 0 {
				fmt.Printf("  ✓ History retention:   %d days\n\n", cfg.RetentionDays)
			} else {
				fmt.Printf("  ✓ History retention:   unlimited\n\n")
			}

			httpSrv := &http.Server{Addr: addr, Handler: engine}

			pruneCtx, stopPruner := context.WithCancel(context.Background())
			defer stopPruner()
			if cfg.RetentionDays > 0 {
				go runPruner(pruneCtx, st, cfg.RetentionDays, log)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt) // os.Interrupt = SIGINT; works on all platforms

			select {
			case err := <-errCh:
				return err
			case <-quit:
				fmt.Println("\n  → Shutting down gracefully…")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(ctx)
				return nil
			}
		},
	}

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print GridPilot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("GridPilot %s\n", version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runPruner deletes workunit history older than the retention window once
// per day until ctx is cancelled.
func runPruner(ctx context.Context, st *store.Store, retentionDays int, log zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	prune := func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
		removed, err := st.PruneBefore(cutoff)
		if err != nil {
			log.Error().Err(err).Msg("pruning workunit history failed")
			return
		}
		if removed > 0 {
			log.Info().Int64("removed", removed).Int("retention_days", retentionDays).
				Msg("pruned workunit history")
		}
	}

	prune()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
