// Package health derives the service health signal from its dependencies.
package health

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/jmerrifield20/CyberSentinel/internal/retrieval"
	"go.uber.org/zap"
)

// Overall and inference states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"

	InferenceOnline  = "online"
	InferenceOffline = "offline"
)

// Dependency names passed to MetricsRecordFunc.
const (
	DependencyInference = "inference"
	DependencyVectorDB  = "vector_db"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// ModelLister is the liveness probe of the completion service.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// StoreStatus reports the knowledge-base state.
type StoreStatus interface {
	Status(ctx context.Context) (retrieval.Status, int)
}

// Report is the health snapshot served by the API.
type Report struct {
	Status           string `json:"status"`
	Inference        string `json:"inference"`
	// Ollama mirrors Inference for clients that still read the pre-rename
	// key.
	Ollama           string `json:"ollama"`
	Model            string `json:"model"`
	VectorDB         string `json:"vector_db"`
	DocumentsIndexed int    `json:"documents_indexed"`
}

// DegradedFunc is an optional callback fired when the background loop
// crosses the failure threshold.
type DegradedFunc func(ctx context.Context, report Report)

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(dependency string, up bool)

// Checker probes the completion service and the knowledge base.
type Checker struct {
	model     ModelLister
	modelName string
	store     StoreStatus
	cfg       Config

	mu        sync.Mutex
	failCount int

	onDegraded DegradedFunc
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a Checker. store may be nil when retrieval is disabled.
func New(model ModelLister, modelName string, store StoreStatus, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		model:     model,
		modelName: modelName,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetDegradedHook configures the degraded-transition callback.
func (c *Checker) SetDegradedHook(fn DegradedFunc) {
	c.onDegraded = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Check probes every dependency once. The service is degraded when the
// completion service cannot be reached; knowledge-base state is reported
// but never degrades the service.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Status:    StatusHealthy,
		Inference: InferenceOnline,
		Model:     c.modelName,
		VectorDB:  string(retrieval.StatusOffline),
	}

	if !c.probeInference(ctx) {
		report.Status = StatusDegraded
		report.Inference = InferenceOffline
	}

	if c.store != nil {
		status, n := c.store.Status(ctx)
		report.VectorDB = string(status)
		report.DocumentsIndexed = n
	}

	if c.onMetrics != nil {
		c.onMetrics(DependencyInference, report.Inference == InferenceOnline)
		c.onMetrics(DependencyVectorDB, report.VectorDB == string(retrieval.StatusOnline))
	}

	report.Ollama = report.Inference
	return report
}

// Start runs the health check loop until quit is signalled.
func (c *Checker) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckInterval)
			c.tick(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// tick runs one check and logs threshold transitions.
func (c *Checker) tick(ctx context.Context) {
	report := c.Check(ctx)
	healthy := report.Status == StatusHealthy

	c.mu.Lock()
	prevCount := c.failCount
	if healthy {
		c.failCount = 0
	} else {
		c.failCount++
	}
	count := c.failCount
	c.mu.Unlock()

	switch {
	case healthy && prevCount >= c.cfg.FailThreshold:
		c.logger.Info("health: recovered", zap.String("model", c.modelName))
	case !healthy && count == c.cfg.FailThreshold:
		c.logger.Warn("health: degraded",
			zap.String("model", c.modelName),
			zap.Int("fail_count", count),
		)
		if c.onDegraded != nil {
			c.onDegraded(ctx, report)
		}
	}
}

func (c *Checker) probeInference(ctx context.Context) bool {
	if c.model == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	if _, err := c.model.ListModels(ctx); err != nil {
		c.logger.Debug("health: inference probe failed", zap.Error(err))
		return false
	}
	return true
}
