// Package publisher makes sampled frames reachable by URL so the
// description service can fetch them.
package publisher

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-vision/metrics"
	"github.com/nijaru/yt-vision/models"
	"github.com/nijaru/yt-vision/pace"
)

var remoteLocks sync.Map

type remoteLock struct {
	mu sync.Mutex
}

func getRemoteLock(remote string) *remoteLock {
	lock, _ := remoteLocks.LoadOrStore(remote, &remoteLock{})
	return lock.(*remoteLock)
}

type Publisher struct {
	store       Store
	propagation time.Duration
	clock       pace.Clock
}

func New(store Store, propagation time.Duration, clock pace.Clock) *Publisher {
	if clock == nil {
		clock = pace.RealClock{}
	}
	return &Publisher{
		store:       store,
		propagation: propagation,
		clock:       clock,
	}
}

func (p *Publisher) Backend() string {
	return p.store.Name()
}

// Publish writes frames under taskID and returns their URLs in frame order.
// Any failure is logged and yields an empty list; callers treat that as a
// hard stop for description. URLs are attached to frames on success.
func (p *Publisher) Publish(ctx context.Context, frames []models.Frame, taskID string) []string {
	log := logrus.WithFields(logrus.Fields{
		"stage":   "publishing",
		"backend": p.store.Name(),
		"task_id": taskID,
	})

	if len(frames) == 0 {
		log.Warn("No frames to publish")
		return nil
	}

	files := make([]string, len(frames))
	for i, f := range frames {
		files[i] = f.Path
	}

	keys, err := p.write(ctx, taskID, files)
	if err != nil {
		metrics.PublishAttempts.WithLabelValues(p.store.Name(), "failed").Inc()
		log.WithError(err).Error("Failed to publish frames")
		return nil
	}
	if len(keys) != len(frames) {
		metrics.PublishAttempts.WithLabelValues(p.store.Name(), "failed").Inc()
		log.WithFields(logrus.Fields{
			"frames": len(frames),
			"keys":   len(keys),
		}).Error("Store returned an unexpected number of keys")
		return nil
	}
	metrics.PublishAttempts.WithLabelValues(p.store.Name(), "ok").Inc()

	urls := make([]string, len(keys))
	for i, key := range keys {
		urls[i] = p.store.URL(key)
		frames[i].URL = urls[i]
	}

	if p.propagation > 0 {
		log.WithField("delay", p.propagation).Debug("Waiting for published frames to propagate")
		if err := p.clock.Sleep(ctx, p.propagation); err != nil {
			log.WithError(err).Error("Cancelled while waiting for propagation")
			return nil
		}
	}

	log.WithField("count", len(urls)).Info("Frames published")
	return urls
}

func (p *Publisher) write(ctx context.Context, taskID string, files []string) ([]string, error) {
	lock := getRemoteLock(p.store.Remote())
	lock.mu.Lock()
	defer lock.mu.Unlock()

	if err := p.store.Ensure(ctx); err != nil {
		return nil, err
	}
	return p.store.Put(ctx, taskID, files)
}
