package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"checkmate/internal/remote"
	"checkmate/internal/store"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr, dbPath, redisURL, token string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference sync service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg.Serve
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DB = dbPath
			}
			if redisURL != "" {
				cfg.Redis = redisURL
			}
			if token != "" {
				cfg.Token = token
			}
			logger := app.logger(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(ctx, cfg.DB)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			// nil claims command ids in the server database
			var ledger remote.Ledger
			if strings.TrimSpace(cfg.Redis) != "" {
				rl, err := remote.NewRedisLedger(cfg.Redis, 0)
				if err != nil {
					return writeErr(cmd, fmt.Errorf("redis ledger: %w", err))
				}
				defer rl.Close()
				ledger = rl
			}

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return writeErr(cmd, err)
			}
			srv := &http.Server{
				Handler:           remote.NewServer(st, ledger, cfg.Token, logger).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.Printf("remote: listening on http://%s (db %s)", ln.Addr(), cfg.DB)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()
			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return writeErr(cmd, err)
				}
				return nil
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default serve.addr)")
	cmd.Flags().StringVar(&dbPath, "server-db", "", "Server sqlite path (default serve.db)")
	cmd.Flags().StringVar(&redisURL, "redis", "", "Redis URL for a command-id ledger shared by several servers (default: the server database)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token clients must send (default serve.token)")
	return cmd
}
