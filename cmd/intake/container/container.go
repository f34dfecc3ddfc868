package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/casedesk/intake/cmd/intake/repository"
	"github.com/casedesk/intake/cmd/intake/service"
	"github.com/casedesk/intake/common/bootstrap"
	"github.com/casedesk/intake/common/cache"
	"github.com/casedesk/intake/common/clients"
	"github.com/casedesk/intake/common/ratelimit"
	rediscommon "github.com/casedesk/intake/common/redis"
	"github.com/casedesk/intake/common/storage"
	"github.com/casedesk/intake/common/validation"
	"github.com/casedesk/intake/common/verify"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client
	Store      storage.ObjectStore
	Limiter    ratelimit.Limiter

	// Repositories
	ReportRepo *repository.ReportRepository

	// Services
	IntakeService *service.IntakeService
	ReportService *service.ReportService
	Notifier      *service.Notifier
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	c := &Container{Components: components}

	// Redis backs the limiter, the upload claim, and the shared report
	// cache; a memory limiter deployment runs without it.
	var claimer service.UploadClaimer
	reportCache := components.Cache
	if cfg.Intake.LimiterType == "redis" {
		raw := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := raw.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.Redis = rediscommon.NewClient(raw, log)

		c.Limiter = ratelimit.NewRedisLimiter(c.Redis.GetUnderlying(), cfg.Intake.RateLimitMax, cfg.Intake.RateLimitWindow, log)
		claimer = service.NewRedisClaimer(c.Redis)
		reportCache = cache.NewRedisCache(c.Redis)
	} else {
		c.Limiter = ratelimit.NewMemoryLimiter(cfg.Intake.RateLimitMax, cfg.Intake.RateLimitWindow)
		claimer = service.NewMemoryClaimer()
	}

	// Object storage
	switch cfg.Storage.Type {
	case "minio":
		store, err := storage.NewMinioStore(ctx, cfg.Storage, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create object store: %w", err)
		}
		c.Store = store
	default:
		c.Store = storage.NewMemoryStore()
	}

	// Attestation verifier
	httpClient := clients.NewHTTPClient(&http.Client{}, cfg.Captcha.Timeout, log)
	verifier := verify.NewScoringVerifier(cfg.Captcha, httpClient, log)

	// Validation limits come from config so the public contract has one
	// source of truth.
	validator := validation.NewReportValidator(validation.Limits{
		MaxAttachments:    cfg.Intake.MaxAttachments,
		MaxAttachmentSize: cfg.Intake.MaxAttachmentSize,
	})

	// Repositories
	c.ReportRepo = repository.NewReportRepository(components.DB)

	// Services (bottom-up: dependencies first)
	stager := service.NewStager(c.Store, cfg.Intake.GrantExpiry, log)
	finalizer := service.NewFinalizer(c.Store, claimer, log)

	c.IntakeService = service.NewIntakeService(
		c.Limiter,
		verifier,
		validator,
		stager,
		finalizer,
		c.ReportRepo,
		components.Queue,
		log,
	)

	c.ReportService = service.NewReportService(c.ReportRepo, reportCache, log)

	if cfg.Notify.Enabled {
		mailer := service.NewSMTPMailer(cfg.Notify)
		c.Notifier = service.NewNotifier(components.Queue, mailer, cfg.Notify.Retries, log)
	}

	return c, nil
}

// Close releases container-owned connections
func (c *Container) Close() error {
	if c.Redis != nil {
		return c.Redis.GetUnderlying().Close()
	}
	return nil
}
