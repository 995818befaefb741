package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/api"
	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/cmdutil"
	"github.com/endorses/lippyguard/internal/pkg/constants"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/endorses/lippyguard/internal/pkg/metrics"
	"github.com/endorses/lippyguard/internal/pkg/session"
	"github.com/endorses/lippyguard/internal/pkg/store"
	"github.com/endorses/lippyguard/internal/pkg/stream"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture service",
	Long: `Run lippyguard as an HTTP service.

Routes:
  POST /api/v1/sessions    run one capture session (409 while one is running)
  GET  /api/v1/stream      WebSocket receiving every session's record batch
  GET  /api/v1/interfaces  list capture interfaces
  GET  /metrics            Prometheus metrics
  GET  /healthz            liveness and current session state

Example:
  lippyguard serve --listen :8080
  curl -X POST localhost:8080/api/v1/sessions -d '{"window":"10s"}'`,
	// Bindings are made per run since capture and serve share config keys.
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cmdutil.BindFlags(cmd, serveBindings)
		return nil
	},
	RunE: runServe,
}

var statsInterval time.Duration

var serveBindings = map[string]string{
	"server.listen":          "listen",
	"stream.max_subscribers": "max-subscribers",
	"storage.driver":         "store",
	"capture.allowed_macs":   "allow-mac",
	"capture.interface":      "interface",
}

func init() {
	ServeCmd.Flags().String("listen", "", "HTTP listen address (default :8080)")
	ServeCmd.Flags().Int("max-subscribers", 0, "maximum concurrent stream subscribers (default 100)")
	ServeCmd.Flags().String("store", "", "flagged record storage (sqlite, mongodb, none)")
	ServeCmd.Flags().StringSlice("allow-mac", nil, "hardware addresses preferred for interface selection")
	ServeCmd.Flags().StringP("interface", "i", "", "interface to capture on")
	ServeCmd.Flags().DurationVar(&statsInterval, "stats-interval", time.Minute, "how often stream statistics are logged (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cmdutil.SignalContext(cmd.Context())
	defer stop()

	flagged, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := flagged.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err)
		}
	}()

	m := metrics.New()
	hub := stream.NewHub(cfg.Stream.MaxSubscribers, m)
	enum := capture.PcapEnumerator{}

	orch := session.New(cfg,
		session.WithEnumerator(enum),
		session.WithPublisher(hub),
		session.WithStore(flagged),
		session.WithMetrics(m),
	)

	srv := api.New(api.Config{
		Runner:       orch,
		Hub:          hub,
		WriteTimeout: cfg.Stream.WriteTimeout,
		Metrics:      m.Handler(),
		Enumerator:   enum,
	})

	logger.Info("Starting lippyguard service",
		"listen", cfg.Server.Listen,
		"storage", cfg.Storage.Driver,
		"max_subscribers", cfg.Stream.MaxSubscribers,
		"window", cfg.Capture.Window)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Serve(gctx, cfg.Server.Listen, srv.Handler(), constants.GracefulShutdownTimeout)
	})
	if statsInterval > 0 {
		g.Go(func() error {
			logStreamStats(gctx, hub, statsInterval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("lippyguard service stopped")
	return nil
}

// logStreamStats periodically reports subscriber backpressure until ctx ends.
func logStreamStats(ctx context.Context, hub *stream.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastDrops uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			broadcasts, drops := hub.BackpressureStats()
			if drops > lastDrops {
				logger.Warn("Stream subscribers dropping batches",
					"subscribers", hub.Count(),
					"broadcasts", broadcasts,
					"drops", drops,
					"new_drops", drops-lastDrops)
			} else {
				logger.Debug("Stream statistics",
					"subscribers", hub.Count(),
					"broadcasts", broadcasts,
					"drops", drops)
			}
			lastDrops = drops
		}
	}
}
