package pipeline

import (
	"context"

	"github.com/nijaru/yt-vision/models"
	"github.com/nijaru/yt-vision/ocr"
)

type MediaFetcher interface {
	Fetch(ctx context.Context, sourceURL, destDir string) (string, error)
}

type FrameSampler interface {
	Duration(ctx context.Context, videoPath string) (models.Duration, error)
	Sample(ctx context.Context, videoPath, framesDir string, interval float64) ([]models.Frame, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, frames []models.Frame) (ocr.Result, error)
}

// FramePublisher returns an empty list when publishing failed.
type FramePublisher interface {
	Publish(ctx context.Context, frames []models.Frame, taskID string) []string
}

type Describer interface {
	Describe(ctx context.Context, urls []string) models.Description
}

// Tracker records task progress. Tracking errors are logged and never fail
// a task.
type Tracker interface {
	Create(ctx context.Context, task *models.Task) error
	SetState(ctx context.Context, id string, state models.State) error
	Complete(ctx context.Context, id string, result *models.AnalysisResult) error
	Fail(ctx context.Context, id string, cause error) error
}

type nopTracker struct{}

func (nopTracker) Create(context.Context, *models.Task) error                     { return nil }
func (nopTracker) SetState(context.Context, string, models.State) error           { return nil }
func (nopTracker) Complete(context.Context, string, *models.AnalysisResult) error { return nil }
func (nopTracker) Fail(context.Context, string, error) error                      { return nil }
