package server

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/poebridge/pkg/adapter"
	"mercator-hq/poebridge/pkg/assistants"
	"mercator-hq/poebridge/pkg/attachments"
	"mercator-hq/poebridge/pkg/backend"
	"mercator-hq/poebridge/pkg/capability"
	"mercator-hq/poebridge/pkg/files"
	"mercator-hq/poebridge/pkg/housekeeping"
	"mercator-hq/poebridge/pkg/images"
	"mercator-hq/poebridge/pkg/proxy/handlers"
	"mercator-hq/poebridge/pkg/security/auth"
	"mercator-hq/poebridge/pkg/simulated"
	"mercator-hq/poebridge/pkg/telemetry/health"
)

// multipartOverhead is added to the file size limit so form fields and part
// headers around a maximum-size file still fit.
const multipartOverhead = 1 << 20

// build wires the service graph from the configuration. Everything created
// here is released by close.
func (s *Server) build(ctx context.Context) error {
	cfg := s.cfg

	if s.api == nil {
		client := backend.NewClient(cfg.Backend, backend.WithObserver(s.metrics))
		s.backend = client
		s.api = client
	}

	table, err := capability.Load(cfg.Models.CatalogFile, cfg.Models.UnknownImageCapable)
	if err != nil {
		return fmt.Errorf("failed to load model catalog: %w", err)
	}
	s.models = table

	if cfg.Models.Watch && cfg.Models.CatalogFile != "" {
		w, err := capability.NewWatcher(table, cfg.Models.CatalogFile, 0, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to watch model catalog: %w", err)
		}
		s.watcher = w
	}

	registry, err := files.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open file registry: %w", err)
	}
	s.files = registry

	codec := attachments.New(s.api, registry, cfg.Limits.AttachmentLimit(), cfg.Attachments.FetchTimeout)
	chat := adapter.New(s.api, codec, table,
		adapter.WithObserver(s.metrics),
		adapter.WithToolLookahead(cfg.Chat.ToolLookaheadBytes),
	)

	s.assistants = assistants.NewStore(chat, assistants.WithRunTimeout(cfg.Assistants.RunTimeout))

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("files", registry.Ping)
	checker.RegisterCheck("models", func(context.Context) error {
		if table.Len() == 0 {
			return fmt.Errorf("model catalog is empty")
		}
		return nil
	})

	s.dispatcher = handlers.NewDispatcher(handlers.Deps{
		Models:         table,
		Chat:           chat,
		Simulated:      simulated.New(s.api, cfg.Embeddings, cfg.Moderations),
		Images:         images.New(s.api, cfg.Images),
		Files:          registry,
		Assistants:     s.assistants,
		Health:         checker,
		Guard:          auth.NewGuard(cfg.Security),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		MaxUploadBytes: cfg.Limits.FileSizeLimit() + multipartOverhead,
		Observer:       s.metrics,
		Version:        s.version,
	})

	job := housekeeping.NewJob(registry, s.assistants, s.metrics)
	s.housekeeping = housekeeping.NewScheduler(job, cfg.Housekeeping.Schedule)

	return nil
}

// close releases the services in reverse dependency order.
func (s *Server) close() {
	if s.housekeeping != nil {
		s.housekeeping.Stop()
	}
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			slog.Warn("failed to stop catalog watcher", "error", err)
		}
	}
	if s.assistants != nil {
		s.assistants.Close()
	}
	if s.files != nil {
		if err := s.files.Close(); err != nil {
			slog.Warn("failed to close file registry", "error", err)
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			slog.Warn("failed to close backend client", "error", err)
		}
	}
}
