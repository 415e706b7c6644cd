package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/fetcher"
	"github.com/sells-group/profiler-cli/internal/model"
	"github.com/sells-group/profiler-cli/internal/profile"
	"github.com/sells-group/profiler-cli/internal/registry"
	"github.com/sells-group/profiler-cli/pkg/notion"
)

// buildFunc builds one profile. The batch and serve commands accept it so
// tests can substitute a stub for the full engine.
type buildFunc func(ctx context.Context, query, hint string) (*model.Profile, error)

// initBuilder sets up the shared memoizing HTTP transport, the source
// adapters, the scoring rules, and the profile builder. A zero themes count
// and an empty rulesPath fall back to config.
func initBuilder(ctx context.Context, rulesPath string, themes int) (*profile.Builder, error) {
	httpc := &http.Client{
		Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		Transport: fetcher.NewMemoTransport(fetcher.TransportOptions{
			MaxRetries:     cfg.Fetch.MaxRetries,
			RequestsPerSec: cfg.Fetch.RequestsPerSec,
		}),
	}

	rules, err := loadRules(ctx, rulesPath)
	if err != nil {
		return nil, err
	}

	if themes <= 0 {
		themes = cfg.Profile.Themes
	}

	adapters := profile.NewAdapters(cfg, httpc)
	metrics := profile.NewMetricsProbe(cfg, httpc, adapters.CMS)

	return profile.NewBuilder(adapters, profile.NewScorer(rules), metrics, themes), nil
}

// loadRules resolves the scoring rule set: an explicit file wins, then the
// Notion rule database, then the built-in defaults.
func loadRules(ctx context.Context, rulesPath string) ([]model.Rule, error) {
	if rulesPath == "" {
		rulesPath = cfg.Profile.RulesFile
	}
	if rulesPath != "" {
		rules, err := registry.LoadFile(rulesPath)
		if err != nil {
			return nil, err
		}
		zap.L().Info("scoring rules loaded from file",
			zap.String("path", rulesPath),
			zap.Int("rules", len(rules)),
		)
		return rules, nil
	}

	if cfg.Notion.Token != "" && cfg.Notion.RuleDB != "" {
		client := notion.NewClient(cfg.Notion.Token)
		rules, err := registry.LoadNotion(ctx, client, cfg.Notion.RuleDB)
		if err != nil {
			return nil, err
		}
		if len(rules) > 0 {
			zap.L().Info("scoring rules loaded from notion",
				zap.Int("rules", len(rules)),
			)
			return rules, nil
		}
		zap.L().Warn("notion rule database is empty, using built-in rules")
	}

	return registry.Defaults(), nil
}
