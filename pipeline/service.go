package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/clock"
	"github.com/eyevinn-osaas/strom-sub003/compiler"
	"github.com/eyevinn-osaas/strom-sub003/errors"
	"github.com/eyevinn-osaas/strom-sub003/flow"
	"github.com/eyevinn-osaas/strom-sub003/metric"
	"github.com/eyevinn-osaas/strom-sub003/node"
	"github.com/eyevinn-osaas/strom-sub003/pkg/worker"
)

// ServiceConfig configures the pipeline service
type ServiceConfig struct {
	// Workers and QueueSize size the shared blocking-work pool. Zero
	// values fall back to 4 workers and a queue of 64.
	Workers   int
	QueueSize int

	// QosInterval overrides the telemetry drain interval for all managed
	// pipelines. Zero keeps DefaultQosInterval.
	QosInterval time.Duration
}

// Service runs one pipeline manager per started flow. It owns the shared
// worker pool for blocking teardown and endpoint recreation, and is the
// surface the API layer consumes.
type Service struct {
	compiler  *compiler.Compiler
	provider  node.Provider
	registry  *node.Registry
	clocks    clock.Provider
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metric.Metrics
	cfg       ServiceConfig

	pool *worker.Pool[Task]

	mu       sync.Mutex
	managers map[string]*Manager
	closed   bool
}

// NewService creates a pipeline service. The worker pool starts with the
// service and is shared by every managed pipeline.
func NewService(
	comp *compiler.Compiler,
	provider node.Provider,
	registry *node.Registry,
	clocks clock.Provider,
	publisher EventPublisher,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
	cfg ServiceConfig,
) (*Service, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	var coreMetrics *metric.Metrics
	poolOpts := []worker.Option[Task]{}
	if metricsRegistry != nil {
		coreMetrics = metricsRegistry.CoreMetrics()
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[Task](metricsRegistry, "pipeline_tasks"))
	}

	pool := worker.NewPool(cfg.Workers, cfg.QueueSize,
		func(ctx context.Context, t Task) error { return t(ctx) },
		poolOpts...)
	if err := pool.Start(context.Background()); err != nil {
		return nil, errors.Wrap(err, "Service", "NewService", "start worker pool")
	}

	return &Service{
		compiler:  comp,
		provider:  provider,
		registry:  registry,
		clocks:    clocks,
		publisher: publisher,
		logger:    logger,
		metrics:   coreMetrics,
		cfg:       cfg,
		pool:      pool,
		managers:  make(map[string]*Manager),
	}, nil
}

// Start compiles a flow and starts its pipeline. Starting an
// already-running flow returns its current state without error.
func (s *Service) Start(ctx context.Context, f *flow.Flow) (flow.PipelineState, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return flow.StateNull, errors.WrapFatal(errors.ErrShuttingDown, "Service", "Start", "lifecycle check")
	}
	if m, ok := s.managers[f.ID]; ok {
		s.mu.Unlock()
		return m.Start(ctx)
	}
	s.mu.Unlock()

	p, err := s.compiler.Compile(ctx, f)
	if err != nil {
		return flow.StateNull, err
	}

	m := NewManager(p, f.Properties, Deps{
		Provider:    s.provider,
		Registry:    s.registry,
		Clocks:      s.clocks,
		Pool:        s.pool,
		Logger:      s.logger,
		Metrics:     s.metrics,
		Publisher:   s.publisher,
		QosInterval: s.cfg.QosInterval,
	})

	s.mu.Lock()
	if existing, ok := s.managers[f.ID]; ok {
		// Lost a race with a concurrent Start for the same flow
		s.mu.Unlock()
		return existing.Start(ctx)
	}
	s.managers[f.ID] = m
	s.mu.Unlock()

	state, err := m.Start(ctx)
	if err != nil {
		s.mu.Lock()
		delete(s.managers, f.ID)
		s.mu.Unlock()
		m.Close()
	}
	return state, err
}

// Stop stops a flow's pipeline and releases its manager. Stopping an
// unknown or already-stopped flow returns the null state without error.
func (s *Service) Stop(flowID string, timeout time.Duration) (flow.PipelineState, error) {
	s.mu.Lock()
	m, ok := s.managers[flowID]
	if ok {
		delete(s.managers, flowID)
	}
	s.mu.Unlock()

	if !ok {
		return flow.StateNull, nil
	}

	state, err := m.Stop(timeout)
	m.Close()
	return state, err
}

// State returns the last observed lifecycle state of a flow's pipeline.
// Unknown flows report the null state.
func (s *Service) State(flowID string) flow.PipelineState {
	s.mu.Lock()
	m, ok := s.managers[flowID]
	s.mu.Unlock()

	if !ok {
		return flow.StateNull
	}
	return m.State()
}

// SetProperty changes a property on a live node of a running flow
func (s *Service) SetProperty(flowID, element, property string, value any) error {
	m, err := s.manager(flowID)
	if err != nil {
		return err
	}
	return m.SetProperty(element, property, value)
}

// DynamicPads returns runtime dynamic pads of a running flow as
// node id -> pad name -> distribution point name.
func (s *Service) DynamicPads(flowID string) (map[string]map[string]string, error) {
	m, err := s.manager(flowID)
	if err != nil {
		return nil, err
	}
	return m.DynamicPads(), nil
}

// DebugGraph renders a running flow's topology as DOT text
func (s *Service) DebugGraph(flowID string) (string, error) {
	m, err := s.manager(flowID)
	if err != nil {
		return "", err
	}
	return m.DebugGraph(), nil
}

// Subscribe attaches a subscriber to a running flow's classified event
// stream. The returned cancel function detaches the subscriber.
func (s *Service) Subscribe(flowID string, buffer int) (<-chan Event, func(), error) {
	m, err := s.manager(flowID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := m.Subscribe(buffer)
	return ch, cancel, nil
}

func (s *Service) manager(flowID string) (*Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.managers[flowID]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("no running pipeline for flow '%s'", flowID),
			"Service", "manager", "flow lookup")
	}
	return m, nil
}

// Close stops every running pipeline and shuts the worker pool down
func (s *Service) Close(timeout time.Duration) error {
	s.mu.Lock()
	s.closed = true
	managers := make([]*Manager, 0, len(s.managers))
	for id, m := range s.managers {
		managers = append(managers, m)
		delete(s.managers, id)
	}
	s.mu.Unlock()

	for _, m := range managers {
		if _, err := m.Stop(timeout); err != nil {
			s.logger.Warn("Pipeline stop during shutdown failed",
				"flow_id", m.FlowID(), "error", err)
		}
		m.Close()
	}

	return s.pool.Stop(timeout)
}
