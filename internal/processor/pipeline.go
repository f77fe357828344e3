package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/svirmi/options-scanner/internal/models"
)

// Cycle carries one scan through the pipeline. Each stage reads what the
// previous stages produced and fills in its own fields.
type Cycle struct {
	Currency     string
	Generation   uint64
	StartedAt    time.Time
	Spot         float64
	SpotFallback bool

	Instruments []models.DeribitInstrument
	Books       []models.DeribitBookSummary

	Contracts     []models.OptionContract
	Grouping      *Grouping
	Opportunities []models.Opportunity
}

type Stage interface {
	Process(ctx context.Context, c *Cycle) error
	Name() string
}

// Pipeline runs its stages in order. The first failing stage aborts the
// cycle; a panicking stage is reported as an error.
type Pipeline struct {
	stages       []Stage
	errorHandler func(error)
	metrics      *pipelineMetrics
}

type pipelineMetrics struct {
	processedCount int64
	errorCount     int64
	lastError      string
	lastProcessed  time.Time
	processingTime time.Duration
	stageTimes     map[string]time.Duration
	mu             sync.RWMutex
}

// PipelineMetrics is a point-in-time copy of the pipeline counters
type PipelineMetrics struct {
	ProcessedCount int64                    `json:"processed_count"`
	ErrorCount     int64                    `json:"error_count"`
	LastError      string                   `json:"last_error,omitempty"`
	LastProcessed  time.Time                `json:"last_processed"`
	ProcessingTime time.Duration            `json:"processing_time"`
	StageTimes     map[string]time.Duration `json:"stage_times"`
}

func NewPipeline(errorHandler func(error), stages ...Stage) *Pipeline {
	return &Pipeline{
		stages:       stages,
		errorHandler: errorHandler,
		metrics:      &pipelineMetrics{stageTimes: make(map[string]time.Duration)},
	}
}

func (p *Pipeline) AddStage(stage Stage) {
	p.stages = append(p.stages, stage)
}

// Stages returns the stage names in execution order
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

func (p *Pipeline) Run(ctx context.Context, c *Cycle) error {
	startTime := time.Now()

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return p.fail(fmt.Errorf("stage %s: %w", stage.Name(), err))
		}

		stageStart := time.Now()
		err := runStage(ctx, stage, c)

		p.metrics.mu.Lock()
		p.metrics.stageTimes[stage.Name()] = time.Since(stageStart)
		p.metrics.mu.Unlock()

		if err != nil {
			return p.fail(fmt.Errorf("stage %s: %w", stage.Name(), err))
		}
	}

	p.metrics.mu.Lock()
	p.metrics.processedCount++
	p.metrics.lastProcessed = time.Now()
	p.metrics.processingTime = time.Since(startTime)
	p.metrics.mu.Unlock()

	return nil
}

func runStage(ctx context.Context, stage Stage, c *Cycle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stage.Process(ctx, c)
}

func (p *Pipeline) fail(err error) error {
	p.metrics.mu.Lock()
	p.metrics.errorCount++
	p.metrics.lastError = err.Error()
	p.metrics.mu.Unlock()

	if p.errorHandler != nil {
		p.errorHandler(err)
	}
	return err
}

func (p *Pipeline) GetMetrics() PipelineMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	times := make(map[string]time.Duration, len(p.metrics.stageTimes))
	for k, v := range p.metrics.stageTimes {
		times[k] = v
	}
	return PipelineMetrics{
		ProcessedCount: p.metrics.processedCount,
		ErrorCount:     p.metrics.errorCount,
		LastError:      p.metrics.lastError,
		LastProcessed:  p.metrics.lastProcessed,
		ProcessingTime: p.metrics.processingTime,
		StageTimes:     times,
	}
}
