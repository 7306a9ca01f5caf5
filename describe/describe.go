// Package describe partitions frame URLs into bounded batches and drives
// the description service one paced call per batch.
package describe

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/metrics"
	"github.com/nijaru/yt-vision/models"
	"github.com/nijaru/yt-vision/pace"
	"github.com/nijaru/yt-vision/vision"
)

// DefaultMaxBatchSize is the per-call image limit of the description service.
const DefaultMaxBatchSize = 10

// Partition splits urls into consecutive batches of at most size elements.
// Every URL lands in exactly one batch and order is preserved.
func Partition(urls []string, size int) []models.Batch {
	if size <= 0 {
		size = DefaultMaxBatchSize
	}

	batches := make([]models.Batch, 0, (len(urls)+size-1)/size)
	for start := 0; start < len(urls); start += size {
		end := start + size
		if end > len(urls) {
			end = len(urls)
		}
		batches = append(batches, models.Batch{
			Index: len(batches),
			Start: start,
			URLs:  urls[start:end],
		})
	}
	return batches
}

type Config struct {
	MaxBatchSize        int
	Instruction         string
	Condense            bool
	CondenseInstruction string
}

type Batcher struct {
	client vision.Client
	pacer  *pace.Pacer
	cfg    Config
}

func NewBatcher(client vision.Client, pacer *pace.Pacer, cfg Config) *Batcher {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Batcher{
		client: client,
		pacer:  pacer,
		cfg:    cfg,
	}
}

// Describe issues one call per batch in order. A failed call becomes a
// placeholder segment and never stops the remaining batches. An empty
// input returns no segments without touching the service.
func (b *Batcher) Describe(ctx context.Context, urls []string) models.Description {
	const op = "Batcher.Describe"

	if len(urls) == 0 {
		logrus.WithField("stage", "describing").Warn("No frame URLs to describe")
		return models.Description{}
	}

	batches := Partition(urls, b.cfg.MaxBatchSize)
	desc := models.Description{Segments: make([]models.BatchResult, 0, len(batches))}

	for _, batch := range batches {
		log := logrus.WithFields(logrus.Fields{
			"stage": "describing",
			"batch": batch.Index + 1,
			"of":    len(batches),
			"size":  len(batch.URLs),
		})

		if err := b.pacer.Wait(ctx); err != nil {
			log.WithError(err).Error("Cancelled before description call")
			desc.Segments = append(desc.Segments, models.BatchResult{
				Batch: batch,
				Err:   apperrors.Describe(op, err, "description cancelled"),
			})
			metrics.BatchCalls.WithLabelValues("cancelled").Inc()
			continue
		}

		text, err := b.client.Describe(ctx, b.cfg.Instruction, batch.URLs)
		b.pacer.Done()
		if err != nil {
			log.WithError(err).Error("Description call failed, using placeholder")
			desc.Segments = append(desc.Segments, models.BatchResult{
				Batch: batch,
				Err:   apperrors.Describe(op, err, "description call failed"),
			})
			metrics.BatchCalls.WithLabelValues("failed").Inc()
			continue
		}

		log.Debug("Batch described")
		desc.Segments = append(desc.Segments, models.BatchResult{Batch: batch, Text: text})
		metrics.BatchCalls.WithLabelValues("ok").Inc()
	}

	if b.cfg.Condense && desc.Succeeded() > 1 {
		desc.Condensed = b.condense(ctx, desc)
	}
	return desc
}

// condense asks the service for one narrative over all segments and falls
// back to the plain concatenation when that fails.
func (b *Batcher) condense(ctx context.Context, desc models.Description) string {
	if err := b.pacer.Wait(ctx); err != nil {
		return ""
	}
	text, err := b.client.Summarize(ctx, b.cfg.CondenseInstruction, desc.Joined())
	b.pacer.Done()
	if err != nil || strings.TrimSpace(text) == "" {
		logrus.WithError(err).WithField("stage", "describing").Warn("Condensing failed, keeping concatenated segments")
		return ""
	}
	return text
}
