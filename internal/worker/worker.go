// Package worker runs the post-processing pipeline jobs: each dequeued job
// carries one notice for one class, dispatched through the per-kind strategy.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/dispatcher/internal/classes"
	"github.com/aura-webinar/dispatcher/internal/pipeline"
	"github.com/aura-webinar/dispatcher/internal/postprocessing"
	"github.com/aura-webinar/dispatcher/pkg/queue"
)

// PipelineProcessor processes pipeline jobs from the queue.
type PipelineProcessor struct {
	classRepo *classes.Repository
	deps      postprocessing.Deps
	queue     *queue.Queue
	logger    *zap.Logger
}

// NewPipelineProcessor creates a pipeline job processor.
func NewPipelineProcessor(classRepo *classes.Repository, deps postprocessing.Deps, q *queue.Queue, logger *zap.Logger) *PipelineProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &PipelineProcessor{classRepo: classRepo, deps: deps, queue: q, logger: logger}
}

// Process executes one pipeline job.
func (p *PipelineProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.PipelinePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	class, err := p.classRepo.Get(ctx, payload.ClassID)
	if err != nil {
		return fmt.Errorf("class not found: %s", payload.ClassID)
	}
	strategy := postprocessing.New(class, p.deps)

	switch job.Type {
	case queue.JobTypeUploadReady:
		var notice postprocessing.UploadNotice
		if err := json.Unmarshal(payload.Notice, &notice); err != nil {
			return fmt.Errorf("unmarshal upload notice: %w", err)
		}
		return strategy.HandleUpload(ctx, notice.ReadyTracks())

	case queue.JobTypeAdjustResult:
		var notice pipeline.AdjustNotice
		if err := json.Unmarshal(payload.Notice, &notice); err != nil {
			return fmt.Errorf("unmarshal adjust notice: %w", err)
		}
		result, err := postprocessing.ParseAdjustResult(notice.Result)
		if err != nil {
			return err
		}
		return strategy.HandleAdjust(ctx, result)

	case queue.JobTypeTaskComplete:
		var notice pipeline.TaskCompleteNotice
		if err := json.Unmarshal(payload.Notice, &notice); err != nil {
			return fmt.Errorf("unmarshal task notice: %w", err)
		}
		result, err := postprocessing.ParseTranscodeResult(notice.Result)
		if err != nil {
			return err
		}
		return strategy.HandleTranscodingCompletion(ctx, result)

	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *PipelineProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
