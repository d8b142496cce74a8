package main

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mindgate/internal/config"
	"mindgate/internal/core/engine"
	"mindgate/internal/core/providers/mindvideo"
	"mindgate/internal/metrics"
	"mindgate/internal/pkg/logger"
)

// app holds the components every command shares
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *engine.Registry
	picker   *mindvideo.RandomPicker
	client   *mindvideo.Client
}

func loadApp(rec *metrics.Recorder) (*app, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	globalLogger, err := logger.NewWithFormat(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry, err := engine.NewRegistry(cfg.Models, cfg.DefaultModel)
	if err != nil {
		return nil, err
	}

	picker, err := mindvideo.NewRandomPicker(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	up := cfg.Upstream
	client, err := mindvideo.NewClient(mindvideo.Options{
		BaseURL:      up.BaseURL,
		AppKey:       up.AppKey,
		Version:      up.Version,
		Lang:         up.Lang,
		Origin:       up.Origin,
		Referer:      up.Referer,
		UserAgent:    up.UserAgent,
		VideoSeconds: cfg.Video.Seconds,
		VideoSize:    cfg.Video.Size,
		Timeout:      up.Timeout,
		Logger:       logger.Wrap(globalLogger),
		Metrics:      rec,
	}, registry, picker)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      globalLogger,
		registry: registry,
		picker:   picker,
		client:   client,
	}, nil
}
