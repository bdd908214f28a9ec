package job

import (
	"context"
	"log"
	"time"

	"kassandra/internal/service"

	"go.opentelemetry.io/otel/trace"
)

type PipelineRunner interface {
	Run(ctx context.Context, now time.Time) (*service.RunReport, error)
}

// PipelineJob retrains and re-predicts once per day, after the US close
// has settled.
type PipelineJob struct {
	tracer  trace.Tracer
	runner  PipelineRunner
	runHour int
}

func NewPipelineJob(tracer trace.Tracer, runner PipelineRunner, runHourUTC int) *PipelineJob {
	if runHourUTC < 0 || runHourUTC > 23 {
		runHourUTC = 1
	}
	return &PipelineJob{tracer: tracer, runner: runner, runHour: runHourUTC}
}

func (j *PipelineJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Pipeline job disabled: no runner")
		<-ctx.Done()
		return
	}
	for {
		next := nextRunUTC(time.Now().UTC(), j.runHour)
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.runOnce(ctx)
		}
	}
}

func (j *PipelineJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "pipeline-job.run-once")
	defer span.End()

	out, err := j.runner.Run(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Pipeline run error: %v", err)
		return
	}
	log.Printf("Pipeline run complete: %s v%d, next close %.2f (%s)",
		out.Ticker, out.ModelVersion, out.NextClose, out.NextDirection)
}

func nextRunUTC(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
