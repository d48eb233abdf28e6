package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arion-app/arion-plugins/pkg/platform"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listen   string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the platform as a daemon with file watching and an HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := opts.newLogger()
			if err != nil {
				return err
			}
			defer log.Close()
			zl := log.Zerolog()

			p := opts.newPlatform(zl)
			defer p.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p.Reload(ctx)

			watcher, err := platform.NewWatcher(p, debounce, zl)
			if err != nil {
				return err
			}
			watcherDone := make(chan error, 1)
			go func() { watcherDone <- watcher.Run(ctx) }()

			mux := http.NewServeMux()
			mux.Handle("/metrics", p.Metrics().Handler())
			mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
				snap := p.Snapshot()
				if snap == nil {
					http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(snap)
			})
			mux.HandleFunc("/reload", func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					http.Error(w, "POST required", http.StatusMethodNotAllowed)
					return
				}
				snap := p.Reload(r.Context())
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(snap)
			})

			server := &http.Server{Addr: listen, Handler: mux}
			serverDone := make(chan error, 1)
			go func() { serverDone <- server.ListenAndServe() }()

			zl.Info().Str("listen", listen).Msg("Serving plugin platform")

			select {
			case <-ctx.Done():
			case err := <-serverDone:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case err := <-watcherDone:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":9187", "HTTP listen address")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "file watch debounce (default 500ms)")
	return cmd
}
