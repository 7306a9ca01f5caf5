// Package pipeline sequences the analysis stages for one task and owns the
// failure isolation between them.
package pipeline

import (
	"context"
	"math"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/metrics"
	"github.com/nijaru/yt-vision/models"
	"github.com/nijaru/yt-vision/notify"
	"github.com/nijaru/yt-vision/ocr"
	"github.com/nijaru/yt-vision/tracing"
)

type Deps struct {
	Fetcher   MediaFetcher
	Sampler   FrameSampler
	Extractor TextExtractor
	Publisher FramePublisher
	Describer Describer

	// Tracker and Notifier are optional.
	Tracker  Tracker
	Notifier notify.Notifier
}

type Config struct {
	WorkDir    string
	KeepFrames bool
}

type Orchestrator struct {
	deps Deps
	cfg  Config
}

func New(deps Deps, cfg Config) *Orchestrator {
	if deps.Tracker == nil {
		deps.Tracker = nopTracker{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Orchestrator{deps: deps, cfg: cfg}
}

// NewTask creates a task whose directories live under the work directory.
func (o *Orchestrator) NewTask(sourceURL string, interval float64) *models.Task {
	return models.NewTask(sourceURL, interval, o.cfg.WorkDir)
}

// Run creates a task and executes it.
func (o *Orchestrator) Run(ctx context.Context, sourceURL string, interval float64) (*models.AnalysisResult, error) {
	return o.Execute(ctx, o.NewTask(sourceURL, interval))
}

// Execute drives task to a terminal state. It returns either a complete
// result or a *errors.PipelineError naming the failed stage.
func (o *Orchestrator) Execute(ctx context.Context, task *models.Task) (*models.AnalysisResult, error) {
	ctx, span := tracing.Tracer().Start(ctx, "pipeline.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.source_url", task.SourceURL),
		attribute.Float64("task.interval", task.Interval),
	)

	metrics.ActiveTasks.Inc()
	defer metrics.ActiveTasks.Dec()

	log := logrus.WithFields(logrus.Fields{
		"task_id": task.ID,
		"url":     task.SourceURL,
	})
	log.Info("Task started")

	if err := o.deps.Tracker.Create(ctx, task); err != nil {
		log.WithError(err).Warn("Failed to track task")
	}
	defer o.cleanup(task, log)

	started := time.Now()
	result, err := o.execute(ctx, task, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.StageOf(err))
		o.fail(task, err, log)
		return nil, err
	}

	if err := o.deps.Tracker.Complete(context.WithoutCancel(ctx), task.ID, result); err != nil {
		log.WithError(err).Warn("Failed to track task completion")
	}
	metrics.TasksTotal.WithLabelValues(string(models.StateCompleted)).Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(started).Seconds())
	o.notify(ctx, task, "", nil, result.FrameCount, log)

	log.WithFields(logrus.Fields{
		"frames":   result.FrameCount,
		"duration": result.Duration.String(),
	}).Info("Task completed")
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, task *models.Task, log *logrus.Entry) (*models.AnalysisResult, error) {
	const op = "Orchestrator.Execute"

	if strings.TrimSpace(task.SourceURL) == "" {
		return nil, apperrors.Invalid(op, nil, "source URL is required")
	}
	if task.Interval <= 0 || math.IsNaN(task.Interval) || math.IsInf(task.Interval, 0) {
		return nil, apperrors.Invalid(op, nil, "interval must be a positive number of seconds")
	}

	// Fetching
	if err := o.advance(ctx, task, models.StateFetching, log); err != nil {
		return nil, err
	}
	var video string
	err := o.stage(ctx, "fetch", func(ctx context.Context) error {
		var err error
		video, err = o.deps.Fetcher.Fetch(ctx, task.SourceURL, task.VideoDir)
		return err
	})
	if err != nil {
		return nil, stageError(err, apperrors.Fetch, op, "failed to download video")
	}

	duration, err := o.deps.Sampler.Duration(ctx, video)
	if err != nil {
		log.WithError(err).Warn("Could not determine video duration")
		duration = models.Duration{}
	}

	// Sampling
	if err := o.advance(ctx, task, models.StateSampling, log); err != nil {
		return nil, err
	}
	var frames []models.Frame
	err = o.stage(ctx, "sample", func(ctx context.Context) error {
		var err error
		frames, err = o.deps.Sampler.Sample(ctx, video, task.FramesDir, task.Interval)
		return err
	})
	if err != nil {
		return nil, stageError(err, apperrors.Extraction, op, "failed to extract frames")
	}
	if err := os.RemoveAll(task.VideoDir); err != nil {
		log.WithError(err).Warn("Failed to remove video directory")
	}
	metrics.FramesSampled.Add(float64(len(frames)))

	// Publishing and text extraction read the same frames independently.
	if err := o.advance(ctx, task, models.StatePublishing, log); err != nil {
		return nil, err
	}
	ocrFrames := append([]models.Frame(nil), frames...)

	var (
		urls   []string
		text   ocr.Result
		ocrErr error
		g      errgroup.Group
	)
	g.Go(func() error {
		_ = o.stage(ctx, "publish", func(ctx context.Context) error {
			urls = o.deps.Publisher.Publish(ctx, frames, task.ID)
			return nil
		})
		return nil
	})
	g.Go(func() error {
		ocrErr = o.stage(ctx, "ocr", func(ctx context.Context) error {
			var err error
			text, err = o.deps.Extractor.Extract(ctx, ocrFrames)
			return err
		})
		return nil
	})
	_ = g.Wait()

	partial := &models.AnalysisResult{
		TaskID:     task.ID,
		SourceURL:  task.SourceURL,
		Duration:   duration,
		FrameCount: len(frames),
	}
	if ocrErr == nil {
		partial.Text = text.Text
		for i := range frames {
			frames[i].Text = ocrFrames[i].Text
		}
	}

	if len(urls) == 0 {
		return nil, apperrors.Publish(op, nil, "no frame URLs were published, description skipped").WithPartial(partial)
	}

	// ExtractingText
	if err := o.advance(ctx, task, models.StateExtractingText, log); err != nil {
		return nil, err
	}
	if ocrErr != nil {
		return nil, stageError(ocrErr, apperrors.Ocr, op, "failed to extract text")
	}
	if len(text.Failed) > 0 {
		log.WithField("frames", text.Failed).Warn("Some frames could not be read by OCR")
	}

	// Describing
	if err := o.advance(ctx, task, models.StateDescribing, log); err != nil {
		return nil, err
	}
	var desc models.Description
	_ = o.stage(ctx, "describe", func(ctx context.Context) error {
		desc = o.deps.Describer.Describe(ctx, urls)
		return nil
	})
	if failed := desc.Failed(); len(failed) > 0 {
		log.WithFields(logrus.Fields{
			"failed":  len(failed),
			"batches": len(desc.Segments),
		}).Warn("Some description batches were replaced with placeholders")
	}

	if err := o.advance(ctx, task, models.StateCompleted, log); err != nil {
		return nil, err
	}

	partial.Summary = desc.Summary()
	partial.Description = desc
	return partial, nil
}

func (o *Orchestrator) advance(ctx context.Context, task *models.Task, to models.State, log *logrus.Entry) error {
	if err := ctx.Err(); err != nil {
		return stageError(err, stageCtor(task.State), "Orchestrator.advance", "task cancelled")
	}
	if err := task.Advance(to); err != nil {
		return err
	}
	if err := o.deps.Tracker.SetState(ctx, task.ID, to); err != nil {
		log.WithError(err).Warn("Failed to track state change")
	}
	log.WithField("state", to).Debug("Task advanced")
	return nil
}

// stage runs fn inside a span and records its duration.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.Tracer().Start(ctx, "stage."+name)
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) fail(task *models.Task, err error, log *logrus.Entry) {
	if ferr := task.Fail(); ferr != nil {
		log.WithError(ferr).Warn("Task already terminal")
	}

	stage := apperrors.StageOf(err)
	if stage == "" {
		stage = string(task.FailedIn)
	}
	log.WithFields(logrus.Fields{
		"stage": stage,
		"kind":  apperrors.KindOf(err),
	}).WithError(err).Error("Task failed")

	// The caller's context may already be cancelled; terminal bookkeeping
	// still has to land.
	ctx := context.Background()
	if terr := o.deps.Tracker.Fail(ctx, task.ID, err); terr != nil {
		log.WithError(terr).Warn("Failed to track task failure")
	}
	metrics.TasksTotal.WithLabelValues(string(models.StateFailed)).Inc()
	o.notify(ctx, task, stage, err, 0, log)
}

func (o *Orchestrator) notify(ctx context.Context, task *models.Task, stage string, cause error, frames int, log *logrus.Entry) {
	event := notify.Event{
		TaskID:     task.ID,
		SourceURL:  task.SourceURL,
		State:      string(task.State),
		Stage:      stage,
		FrameCount: frames,
		FinishedAt: time.Now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if err := o.deps.Notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		log.WithError(err).Warn("Failed to send status event")
	}
}

// cleanup removes the task's working files. A video that could not be
// sampled is left in place for inspection or a retry.
func (o *Orchestrator) cleanup(task *models.Task, log *logrus.Entry) {
	if task.FailedIn == models.StateSampling {
		log.WithField("dir", task.VideoDir).Warn("Keeping video after sampling failure")
	} else if err := os.RemoveAll(task.VideoDir); err != nil {
		log.WithError(err).Warn("Failed to remove video directory")
	}
	if o.cfg.KeepFrames {
		return
	}
	if err := os.RemoveAll(task.FramesDir); err != nil {
		log.WithError(err).Warn("Failed to remove frames directory")
	}
}

type errorCtor func(op string, err error, message string) *apperrors.PipelineError

// stageError keeps an existing PipelineError and tags anything else with
// the stage of ctor.
func stageError(err error, ctor errorCtor, op, message string) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return ctor(op, err, message)
}

func stageCtor(state models.State) errorCtor {
	switch state {
	case models.StateFetching:
		return apperrors.Fetch
	case models.StateSampling:
		return apperrors.Extraction
	case models.StatePublishing:
		return apperrors.Publish
	case models.StateExtractingText:
		return apperrors.Ocr
	case models.StateDescribing:
		return apperrors.Describe
	default:
		return apperrors.Invalid
	}
}
