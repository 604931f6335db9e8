package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"goalgazer/internal/logger"
	"goalgazer/internal/persistence"
	"goalgazer/internal/server"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generated articles over HTTP",
		Long: `Start a read-only HTTP server over the generated content.

The server provides:
  • JSON API for the article index and individual articles
  • HTML preview pages for each article
  • The generated chart images
  • Health check and status endpoints

Articles are read from the content directory. When a database is configured
it is used for slugs that have no file on disk.

Examples:
  # Start server on default port 8080
  goalgazer serve

  # Start on all interfaces, custom port
  goalgazer serve --host 0.0.0.0 --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.Get()

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	opts := server.Options{
		ContentDir:   cfg.Output.ContentDir,
		PublicDir:    cfg.Output.PublicDir,
		PublicPrefix: cfg.Output.PublicPrefix,
	}

	if cfg.Database.Enabled() {
		db, err := persistence.NewPostgresDB(ctx, cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("Database unavailable, serving files only")
		} else {
			defer db.Close()
			opts.Store = db.Matches()
			opts.DB = db
		}
	}

	srv := server.New(serverCfg, opts, log)

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Println(panel("GoalGazer content API",
			field("Listening", fmt.Sprintf("http://%s:%d", serverCfg.Host, serverCfg.Port)),
			field("Content", opts.ContentDir),
			mutedStyle.Render("Press Ctrl+C to stop"),
		))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}
