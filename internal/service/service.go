// Package service wires configuration, class metadata, aspects, the
// expression cache and report storage into one weaving pass.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aop-weaver/internal/aspect"
	"github.com/aop-weaver/internal/expression"
	"github.com/aop-weaver/internal/metadata"
	"github.com/aop-weaver/internal/repository"
	"github.com/aop-weaver/internal/storage"
	"github.com/aop-weaver/internal/weaver"
	"github.com/aop-weaver/pkg/config"
	apperrors "github.com/aop-weaver/pkg/errors"
	"github.com/aop-weaver/pkg/filter"
	"github.com/aop-weaver/pkg/telemetry"
	"github.com/aop-weaver/pkg/utils"
	"github.com/aop-weaver/pkg/writer"
)

// Option configures a Service.
type Option func(*Service)

// WithFilters registers the custom filters filter(...) pointcuts may name.
func WithFilters(filters *aspect.FilterRegistry) Option {
	return func(s *Service) {
		s.filters = filters
	}
}

// WithExpressionRepository replaces the configured expression cache.
func WithExpressionRepository(repo repository.ExpressionRepository) Option {
	return func(s *Service) {
		s.repo = repo
	}
}

// WithStorage replaces the configured report storage.
func WithStorage(store storage.Storage) Option {
	return func(s *Service) {
		s.storage = store
	}
}

// WithClock sets the clock used for report timestamps and phase timing.
func WithClock(clock utils.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// Service runs weaving passes over the configured class metadata.
type Service struct {
	config    *config.Config
	logger    utils.Logger
	clock     utils.Clock
	filters   *aspect.FilterRegistry
	registry  *metadata.Registry
	repo      repository.ExpressionRepository
	evaluator *expression.Evaluator
	storage   storage.Storage

	initialized bool
}

// Outcome is what one weaving pass produced.
type Outcome struct {
	Result    *weaver.Result
	Report    *weaver.Report
	ReportURL string
	Phases    []utils.Phase
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	Initialized bool `json:"initialized"`
	Classes     int  `json:"classes"`
	Expressions int  `json:"expressions"`
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "config is nil")
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	s := &Service{
		config: cfg,
		logger: logger,
		clock:  utils.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Initialize loads metadata and opens the expression cache and storage.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing weaving components...")

	if err := s.loadMetadata(); err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	if err := s.initExpressionCache(ctx); err != nil {
		return fmt.Errorf("failed to initialize expression cache: %w", err)
	}

	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	s.initialized = true
	s.logger.Info("Weaving components initialized successfully")
	return nil
}

func (s *Service) loadMetadata() error {
	paths := s.config.Weaving.Metadata
	if len(paths) == 0 {
		return apperrors.New(apperrors.CodeConfigError, "no metadata documents configured")
	}

	registry, err := metadata.LoadRegistry(paths...)
	if err != nil {
		return err
	}
	s.registry = registry
	s.logger.Info("Loaded %d classes from %d metadata documents", len(registry.ClassNames()), len(paths))
	return nil
}

func (s *Service) initExpressionCache(ctx context.Context) error {
	if s.repo == nil {
		s.logger.Info("Opening expression cache (%s)...", s.config.ExpressionCache.Type)
		repo, err := repository.NewExpressionRepository(ctx, &s.config.ExpressionCache)
		if err != nil {
			return err
		}
		s.repo = repo
	}

	s.evaluator = expression.NewEvaluator(
		expression.WithRepository(s.repo),
		expression.WithClock(s.clock),
		expression.WithLogger(s.logger),
	)
	if _, err := s.evaluator.Load(ctx); err != nil {
		return err
	}
	return nil
}

// initStorage opens report storage when publishing is enabled.
func (s *Service) initStorage() error {
	if s.storage != nil || s.config.Storage.ReportKey == "" {
		return nil
	}

	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)
	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}
	s.storage = store
	return nil
}

// Weave runs one weaving pass. Targets that fail are reported and joined
// into the returned error; the outcome is returned either way.
func (s *Service) Weave(ctx context.Context) (*Outcome, error) {
	if !s.initialized {
		return nil, apperrors.New(apperrors.CodeConfigError, "service is not initialized")
	}

	ctx, span := telemetry.StartSpan(ctx, "weaver.build",
		attribute.Int("weaver.classes", len(s.registry.ClassNames())),
		attribute.Bool("weaver.parallel", s.config.Weaving.Parallel),
	)
	defer span.End()

	timer := utils.NewTimer("weave", utils.WithLogger(s.logger), utils.WithClock(s.clock))
	outcome := &Outcome{}

	var containers []*aspect.Container
	var aspectNames []string
	_, aspectErr := timer.TimeFuncWithError("aspects", func() error {
		builder := aspect.NewBuilder(s.builderOptions())
		aspectNames = builder.AspectClassNames()
		var err error
		containers, err = builder.BuildAll()
		return err
	})

	var buildErr error
	_, _ = timer.TimeFuncWithError("weave", func() error {
		b := weaver.NewProxyClassBuilder(weaver.Options{
			Metadata:   s.registry,
			Aspects:    containers,
			Namespaces: filter.NewNamespaceFilter(s.config.Weaving.ExcludedNamespaces...),
			Compiler:   s.evaluator,
			Parallel:   s.config.Weaving.Parallel,
			Workers:    s.config.Weaving.Workers,
			Logger:     s.logger,
		})
		outcome.Result, buildErr = b.Build(ctx)
		return buildErr
	})

	outcome.Report = weaver.NewReport(outcome.Result, aspectNames, s.clock.Now())
	if _, err := timer.TimeFuncWithError("report", func() error {
		return s.writeReport(ctx, outcome)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}

	timer.PrintSummary()
	outcome.Phases = timer.Phases()

	err := errors.Join(aspectErr, buildErr)
	span.SetAttributes(
		attribute.Int("weaver.proxied", outcome.Report.Summary.Proxied),
		attribute.Int("weaver.failed", outcome.Report.Summary.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weaving failed")
	}
	return outcome, err
}

func (s *Service) builderOptions() aspect.BuilderOptions {
	opts := aspect.BuilderOptions{
		Metadata: s.registry,
		Settings: s.config.Settings(),
		Logger:   s.logger,
	}
	if s.filters != nil {
		opts.Filters = s.filters
	}
	return opts
}

func (s *Service) writeReport(ctx context.Context, outcome *Outcome) error {
	if path := s.config.Weaving.ReportPath; path != "" {
		if err := weaver.WriteReport(outcome.Report, path); err != nil {
			return apperrors.Wrap(apperrors.CodeStorageError, "failed to write report", err)
		}
		s.logger.Info("Report written to %s", path)
	}

	key := s.config.Storage.ReportKey
	if key == "" || s.storage == nil {
		return nil
	}
	w, err := writer.ForPath[*weaver.Report](key)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "unsupported report key", err)
	}
	data, err := writer.Bytes(w, outcome.Report)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to encode report", err)
	}
	url, err := storage.Publish(ctx, s.storage, key, data)
	if err != nil {
		return err
	}
	outcome.ReportURL = url
	s.logger.Info("Report published to %s", url)
	return nil
}

// Interceptors returns a builder that resolves advices against advices and
// gates them with the compiled runtime expressions of this service.
func (s *Service) Interceptors(advices weaver.AdviceResolver) *weaver.InterceptorBuilder {
	return weaver.NewInterceptorBuilder(advices, s.evaluator, s.logger)
}

// Registry returns the loaded class metadata.
func (s *Service) Registry() *metadata.Registry {
	return s.registry
}

// Stats returns service statistics.
func (s *Service) Stats() ServiceStats {
	stats := ServiceStats{Initialized: s.initialized}
	if s.registry != nil {
		stats.Classes = len(s.registry.ClassNames())
	}
	if s.evaluator != nil {
		stats.Expressions = s.evaluator.Len()
	}
	return stats
}

// HealthCheck verifies the expression cache is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.repo.List(ctx); err != nil {
		return fmt.Errorf("expression cache health check failed: %w", err)
	}
	return nil
}

// Close releases the expression cache.
func (s *Service) Close() error {
	s.initialized = false
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Close(); err != nil {
		s.logger.Error("Failed to close expression cache: %v", err)
		return err
	}
	return nil
}
