package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mindgate/internal/core"
	"mindgate/internal/core/bridge"
	"mindgate/internal/core/orchestrator"
	"mindgate/internal/core/processors"
	"mindgate/internal/core/security"
	"mindgate/internal/metrics"
	"mindgate/internal/pkg/logger"
	"mindgate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MindGate server",
	Long:  `Start the MindGate HTTP server and begin accepting requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			promRegistry *prometheus.Registry
			rec          *metrics.Recorder
		)
		if viper.GetBool("metrics.enabled") {
			promRegistry = prometheus.NewRegistry()
			promRegistry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			rec = metrics.New(promRegistry)
		}

		a, err := loadApp(rec)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		cfg := a.cfg
		log := logger.Wrap(a.log)
		scanner := security.NewScanner()

		orch := orchestrator.New(a.client,
			orchestrator.WithLogger(log),
			orchestrator.WithMetrics(rec),
		)
		br := bridge.New(orch,
			bridge.Policies{
				Stream:   orchestrator.Policy{Interval: cfg.Polling.Stream.Interval, Deadline: cfg.Polling.Stream.Deadline},
				Blocking: orchestrator.Policy{Interval: cfg.Polling.Blocking.Interval, Deadline: cfg.Polling.Blocking.Deadline},
			},
			bridge.WithPipeline(core.NewPipeline(
				processors.NewRequestLogger(scanner),
				processors.NewPromptGuard(scanner),
			)),
			bridge.WithFallbackCredential(a.picker.First),
			bridge.WithMetrics(rec),
			bridge.WithLogger(log),
		)

		opts := server.Options{
			Addr:        cfg.Addr(),
			MasterKey:   cfg.Auth.MasterKey,
			Bridge:      br,
			Registry:    a.registry,
			ImageModel:  cfg.ImageModel,
			Uploader:    a.client,
			Logger:      log,
			MetricsPath: cfg.Metrics.Path,
		}
		if promRegistry != nil {
			opts.Gatherer = promRegistry
		}

		if cfg.AuthDisabled() {
			a.log.Warn("master key not set, inbound authentication is disabled")
		}
		a.log.Info("configuration loaded",
			zap.Int("credentials", a.picker.Size()),
			zap.Int("models", len(a.registry.List())),
			zap.String("default_model", a.registry.DefaultKey()),
		)

		return server.New(opts).Start()
	},
}

func SetupServeCmd() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Server port")
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "Server host")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}
