package main

import (
	"context"
	"fmt"

	"github.com/stackspy/stackspy/internal/alerts"
	"github.com/stackspy/stackspy/internal/curation"
	"github.com/stackspy/stackspy/internal/logger"
	"github.com/stackspy/stackspy/internal/monitor"
	"github.com/stackspy/stackspy/internal/pipeline"
)

// runtime is the assembled monitoring stack shared by the monitor and
// serve commands
type runtime struct {
	scheduler *monitor.Scheduler
	engine    *alerts.Engine
	manager   *pipeline.Manager
}

// buildRuntime wires storage, curation, scheduling, and alerting together
// from the loaded configuration. One-shot commands disable discovery so
// only explicitly enqueued jobs run.
func buildRuntime(ctx context.Context, disableDiscovery bool) (*runtime, error) {
	// Curation: fetch, extract, diff
	curationCfg, err := cfg.Curation.ToCurationConfig()
	if err != nil {
		return nil, err
	}
	extractor, err := curation.NewExtractor()
	if err != nil {
		return nil, err
	}
	curator, err := curation.NewService(store, curation.NewHTTPFetcher(), extractor,
		curationCfg, logger.Named("curation"))
	if err != nil {
		return nil, err
	}

	// Scheduler
	monitorCfg, err := cfg.Monitor.ToMonitorConfig()
	if err != nil {
		return nil, err
	}
	monitorCfg.DisableDiscovery = disableDiscovery
	scheduler, err := monitor.NewScheduler(monitorCfg, store, curator, logger.Named("monitor"))
	if err != nil {
		return nil, err
	}

	// Alert engine with configured rules
	bands := alerts.DefaultSeverityBands()
	if cfg.Alerts.SeverityBands != nil {
		bands = *cfg.Alerts.SeverityBands
	}
	engine, err := alerts.NewEngine(bands, logger.Named("alerts"))
	if err != nil {
		return nil, err
	}
	for _, rc := range cfg.Alerts.Rules {
		rule, err := rc.ToRule()
		if err != nil {
			return nil, err
		}
		if err := engine.AddRule(rule); err != nil {
			return nil, err
		}
		// Mirror config rules into storage so the rules CLI and API
		// list them alongside API-created rules
		if err := store.SaveRule(ctx, rule); err != nil {
			logger.Named("alerts").Warnw("failed to persist config rule",
				"rule", rule.Name, "error", err)
		}
	}

	dispatcher, err := buildDispatcher()
	if err != nil {
		return nil, err
	}

	// Pipeline: debounce and batch-summary policy
	pipelineCfg := pipeline.DefaultConfig()
	window, err := cfg.Alerts.DebounceWindowDuration()
	if err != nil {
		return nil, err
	}
	pipelineCfg.DebounceWindow = window
	if cfg.Alerts.BatchThreshold > 0 {
		pipelineCfg.BatchThreshold = cfg.Alerts.BatchThreshold
	}
	manager, err := pipeline.NewManager(pipelineCfg, engine, dispatcher, store, logger.Named("pipeline"))
	if err != nil {
		return nil, err
	}
	scheduler.OnJobComplete(manager.HandleJobComplete)

	return &runtime{
		scheduler: scheduler,
		engine:    engine,
		manager:   manager,
	}, nil
}

// buildDispatcher registers the channels that have configuration. Console
// and store are always available.
func buildDispatcher() (*alerts.Dispatcher, error) {
	dispatcher, err := alerts.NewDispatcher(store, logger.Named("dispatch"))
	if err != nil {
		return nil, err
	}
	dispatcher.Register(alerts.NewConsoleNotifier())

	channels := cfg.Alerts.Channels
	if channels.Email != nil {
		email, err := alerts.NewEmailNotifier(*channels.Email)
		if err != nil {
			return nil, fmt.Errorf("email channel: %w", err)
		}
		dispatcher.Register(email)
	}
	if channels.ChatWebhook != "" {
		chat, err := alerts.NewChatNotifier(channels.ChatWebhook)
		if err != nil {
			return nil, fmt.Errorf("chat channel: %w", err)
		}
		dispatcher.Register(chat)
	}
	if len(channels.WebhookURLs) > 0 {
		webhook, err := alerts.NewWebhookNotifier(channels.WebhookURLs)
		if err != nil {
			return nil, fmt.Errorf("webhook channel: %w", err)
		}
		dispatcher.Register(webhook)
	}
	return dispatcher, nil
}
