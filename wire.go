package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-vision/config"
	"github.com/nijaru/yt-vision/describe"
	"github.com/nijaru/yt-vision/fetcher"
	"github.com/nijaru/yt-vision/frames"
	"github.com/nijaru/yt-vision/notify"
	"github.com/nijaru/yt-vision/ocr"
	"github.com/nijaru/yt-vision/pace"
	"github.com/nijaru/yt-vision/pipeline"
	"github.com/nijaru/yt-vision/publisher"
	"github.com/nijaru/yt-vision/vision"
)

// newStore builds the frame store selected by the publish backend.
func newStore(ctx context.Context, cfg *config.Config) (publisher.Store, error) {
	p := cfg.Publish
	switch p.Backend {
	case config.BackendGit:
		return publisher.NewGitStore(publisher.GitConfig{
			Binary:    cfg.Tools.Git,
			RepoURL:   p.RemoteRepoURL,
			LocalPath: p.LocalRepoPath,
			Branch:    p.Branch,
			Prefix:    p.Prefix,
			BaseURL:   p.PublicBaseURL,
		}), nil
	case config.BackendS3:
		return publisher.NewS3Store(ctx, publisher.S3Config{
			AccessKey: p.AccessKey,
			SecretKey: p.SecretKey,
			Region:    p.Region,
			Endpoint:  p.Endpoint,
			Bucket:    p.Bucket,
			Prefix:    p.Prefix,
			BaseURL:   p.PublicBaseURL,
		})
	case config.BackendMinio:
		return publisher.NewMinioStore(publisher.MinioConfig{
			Endpoint:  p.Endpoint,
			AccessKey: p.AccessKey,
			SecretKey: p.SecretKey,
			UseSSL:    p.UseSSL,
			Region:    p.Region,
			Bucket:    p.Bucket,
			Prefix:    p.Prefix,
			BaseURL:   p.PublicBaseURL,
		})
	default:
		return nil, errors.Errorf("unknown publish backend %q", p.Backend)
	}
}

// newNotifier connects to RabbitMQ when configured. The returned closer is
// always safe to call.
func newNotifier(cfg *config.Config) (notify.Notifier, io.Closer) {
	if cfg.RabbitMQURL == "" {
		return notify.Nop{}, io.NopCloser(nil)
	}
	pub, err := notify.Dial(cfg.RabbitMQURL, cfg.RabbitExchange)
	if err != nil {
		logrus.WithError(err).Warn("Status events disabled, could not connect to RabbitMQ")
		return notify.Nop{}, io.NopCloser(nil)
	}
	return pub, pub
}

// requiredTools lists the binaries the configured pipeline shells out to.
func requiredTools(cfg *config.Config) []string {
	names := []string{cfg.Tools.YtDlp, cfg.Tools.FFmpeg, cfg.Tools.Tesseract}
	if cfg.Publish.Backend == config.BackendGit {
		names = append(names, cfg.Tools.Git)
	}
	return names
}

func newOrchestrator(ctx context.Context, cfg *config.Config, tracker pipeline.Tracker, notifier notify.Notifier) (*pipeline.Orchestrator, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create frame store")
	}

	client := vision.NewOpenAIClient(vision.Config{
		Credential:   cfg.Credential,
		BaseURL:      cfg.Description.BaseURL,
		Model:        cfg.Description.Model,
		SummaryModel: cfg.Description.SummaryModel,
		MaxTokens:    cfg.Description.MaxTokens,
		Timeout:      cfg.Description.RequestTimeout,
	})

	clock := pace.RealClock{}
	batcher := describe.NewBatcher(client, pace.NewPacer(cfg.Description.BatchPace, clock), describe.Config{
		MaxBatchSize:        cfg.Description.MaxBatchSize,
		Instruction:         cfg.Description.Instruction,
		Condense:            cfg.Description.Condense,
		CondenseInstruction: cfg.Description.CondenseInstruction,
	})

	return pipeline.New(pipeline.Deps{
		Fetcher:   fetcher.New(cfg.Tools.YtDlp),
		Sampler:   frames.NewSampler(cfg.Tools.FFmpeg),
		Extractor: ocr.NewExtractor(ocr.NewTesseract(cfg.Tools.Tesseract, cfg.OCR.Language)),
		Publisher: publisher.New(store, cfg.Publish.Propagation, clock),
		Describer: batcher,
		Tracker:   tracker,
		Notifier:  notifier,
	}, pipeline.Config{
		WorkDir:    cfg.WorkDir,
		KeepFrames: cfg.KeepFrames,
	}), nil
}
