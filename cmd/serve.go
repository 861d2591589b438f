package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"parley/internal/config"
	"parley/internal/server"
	"parley/internal/signaling"
	"parley/internal/turnrest"
)

var (
	flagListen     string
	flagTURNURI    string
	flagTURNSecret string
	flagTURNTTL    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Long: `Run the signaling server: the websocket message channel, the room
registry and relay, the TURN credential endpoint and a health check.

Examples:
  parley serve
  parley serve --listen :9000
  parley serve --turn-uri turn:turn.example.com:3478 --turn-secret s3cret`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			ListenAddr: flagListen,
			TURNServer: flagTURNURI,
			TURNSecret: flagTURNSecret,
			TURNTTL:    flagTURNTTL,
		})
		if err != nil {
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func runServer(ctx context.Context, cfg *config.Config) error {
	var turn *turnrest.Generator
	if cfg.TURNSecret != "" {
		if cfg.TURNServer == "" {
			return fmt.Errorf("--turn-secret requires --turn-uri")
		}
		gen, err := turnrest.NewGenerator(turnrest.Config{
			SharedSecret: cfg.TURNSecret,
			TURNURI:      cfg.TURNServer,
			TTL:          cfg.TURNTTL,
		})
		if err != nil {
			return err
		}
		turn = gen
	}

	hub := signaling.NewHub()
	go hub.Run()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(hub, turn),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("signaling server listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Listen address")
	serveCmd.Flags().StringVar(&flagTURNURI, "turn-uri", "", "TURN server URI handed out by /turn")
	serveCmd.Flags().StringVar(&flagTURNSecret, "turn-secret", "", "Shared secret for TURN REST credentials")
	serveCmd.Flags().DurationVar(&flagTURNTTL, "turn-ttl", 0, "TURN credential lifetime")
}
