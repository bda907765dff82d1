package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/recapturedocs/recapturedocs/internal/cache"
	"github.com/recapturedocs/recapturedocs/internal/config"
	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/job"
	"github.com/recapturedocs/recapturedocs/internal/marketplace"
	"github.com/recapturedocs/recapturedocs/internal/monitoring"
	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/payment"
	"github.com/recapturedocs/recapturedocs/internal/retry"
	"github.com/recapturedocs/recapturedocs/internal/splitter"
	"github.com/recapturedocs/recapturedocs/internal/storage"
)

// Runtime owns a configured Service and the resources behind it.
type Runtime struct {
	Service     *Service
	Store       *storage.JobStore
	Audit       *monitoring.AuditLogger
	Marketplace domain.Marketplace
	Config      *config.Config

	events *cache.RedisClient
}

// Build wires the collaborators selected by cfg and loads the job store.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Runtime, error) {
	split, err := splitter.New(cfg.Splitter, logger)
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}

	mp, err := newMarketplace(cfg.Marketplace, logger)
	if err != nil {
		return nil, err
	}

	gw, err := newGateway(cfg.Payment, logger)
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	store := storage.NewJobStore(backend, cfg.Storage.SnapshotName, logger)
	if err := store.Load(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("load job store: %w", err)
	}

	rt := &Runtime{Store: store, Marketplace: mp, Config: cfg}

	var publisher cache.PubSub
	if cfg.Events.Enabled {
		rc, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			PoolSize: cfg.Storage.Redis.PoolSize,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("connect event bus: %w", err)
		}
		rt.events = rc
		publisher = rc
	}
	rt.Audit = monitoring.NewAuditLogger(logger, publisher, cfg.Events.Channel)

	tmpl := job.RetypePageTemplate(cfg.PublicURLFor("/process"))
	tmpl.FrameHeight = cfg.Marketplace.FrameHeight
	tmpl.MaxAssignments = cfg.Marketplace.MaxAssignments
	tmpl.Lifetime = cfg.Marketplace.Lifetime
	tmpl.AssignmentDuration = cfg.Marketplace.AssignmentDuration

	rt.Service = NewService(Deps{
		Store:       store,
		Splitter:    split,
		Marketplace: mp,
		Gateway:     gw,
		Payment: payment.Config{
			CallerKey:        cfg.Payment.AccessKey,
			SignatureVersion: cfg.Payment.SignatureVersion,
			SignatureMethod:  cfg.Payment.SignatureMethod,
			ReturnURL: func(jobID string) string {
				return cfg.PublicURLFor("/complete_payment/" + jobID)
			},
		},
		Template: tmpl,
		Audit:    rt.Audit,
		Logger:   logger,
	})

	logger.Info().
		Str("splitter", cfg.Splitter.Backend).
		Str("marketplace", cfg.Marketplace.Driver).
		Str("payment", cfg.Payment.Driver).
		Str("storage", cfg.Storage.Driver).
		Int("jobs", store.Len()).
		Bool("events", cfg.Events.Enabled).
		Msg("Orchestrator ready")
	return rt, nil
}

// Close saves the store one final time and releases every resource.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.Store.Save(ctx); err != nil {
		errs = append(errs, fmt.Errorf("save job store: %w", err))
	}
	if err := r.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newMarketplace(cfg config.MarketplaceConfig, logger *observability.Logger) (domain.Marketplace, error) {
	switch cfg.Driver {
	case "http":
		return marketplace.NewHTTPClient(marketplace.ClientConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			Timeout:   cfg.Timeout,
			Retry:     retryConfig(cfg.Retries),
		}, logger), nil
	case "", "sandbox":
		return marketplace.NewSandbox(), nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown marketplace driver %q", cfg.Driver), nil)
	}
}

func newGateway(cfg config.PaymentConfig, logger *observability.Logger) (domain.PaymentGateway, error) {
	switch cfg.Driver {
	case "http":
		return payment.NewHTTPGateway(payment.GatewayConfig{
			Endpoint:    cfg.Endpoint,
			PipelineURL: cfg.PipelineURL,
			AccessKey:   cfg.AccessKey,
			Timeout:     cfg.Timeout,
			Retry:       retryConfig(cfg.Retries),
		}, logger), nil
	case "", "sandbox":
		return payment.NewSandboxGateway(cfg.PipelineURL), nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown payment driver %q", cfg.Driver), nil)
	}
}

func retryConfig(retries int) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = retries
	return rc
}
