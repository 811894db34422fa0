package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seantiz/taskroute/internal/catalog"
	"github.com/seantiz/taskroute/internal/classifier"
	"github.com/seantiz/taskroute/internal/config"
	"github.com/seantiz/taskroute/internal/oracle"
	"github.com/seantiz/taskroute/internal/platform"
)

// newPlatforms loads the catalog named by cfg and returns the populated
// registry together with the classifier built from its heuristics.
func newPlatforms(ctx context.Context, cfg config.Config, logger *slog.Logger) (*platform.Registry, *classifier.Classifier, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}

	reg := platform.NewRegistry()
	if err := cat.Populate(reg); err != nil {
		return nil, nil, fmt.Errorf("populate platforms: %w", err)
	}

	var opts []classifier.Option
	if cfg.OracleEnabled() {
		m, err := oracle.NewOpenAIChatModel(ctx, oracle.ChatConfig{
			BaseURL: cfg.OracleBaseURL,
			APIKey:  cfg.OracleAPIKey,
			Model:   cfg.OracleModel,
		})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, classifier.WithOracle(oracle.NewChatOracle(m), cfg.OracleTimeout))
		logger.Info("semantic oracle enabled", "model", cfg.OracleModel)
	}

	c, err := classifier.New(cat.Heuristics, logger, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("build classifier: %w", err)
	}
	return reg, c, nil
}
