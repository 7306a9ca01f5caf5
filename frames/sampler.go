package frames

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/models"
	"github.com/nijaru/yt-vision/tools"
)

const framePattern = "frame_%06d.png"

var frameName = regexp.MustCompile(`^frame_(\d+)\.png$`)

// Sampler turns a local video into still frames with ffmpeg.
type Sampler struct {
	Binary string
	Run    tools.RunFunc
}

func NewSampler(binary string) *Sampler {
	return &Sampler{
		Binary: binary,
		Run:    tools.Run,
	}
}

// Duration runs ffmpeg over the video and parses its duration from ffmpeg's stderr.
func (s *Sampler) Duration(ctx context.Context, videoPath string) (models.Duration, error) {
	// ffmpeg exits non-zero when given no output; the diagnostics are still
	// written, so only the parse result matters.
	out, runErr := s.Run(ctx, "", s.Binary, "-hide_banner", "-i", videoPath, "-f", "null", "-")
	d, err := ParseDuration(string(out.Stderr))
	if err != nil && runErr != nil {
		return models.Duration{}, errors.Wrap(runErr, "read duration")
	}
	return d, err
}

// Sample extracts one frame every interval seconds into framesDir. The
// source video is removed only after a successful extraction.
func (s *Sampler) Sample(ctx context.Context, videoPath, framesDir string, interval float64) ([]models.Frame, error) {
	const op = "Sampler.Sample"
	log := logrus.WithFields(logrus.Fields{
		"video":    videoPath,
		"frames":   framesDir,
		"interval": interval,
	})

	if interval <= 0 || math.IsNaN(interval) || math.IsInf(interval, 0) {
		return nil, apperrors.Extraction(op, nil, "sampling interval must be a positive number of seconds")
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, apperrors.Extraction(op, errors.Wrap(err, "stat video"), "video file is not available")
	}
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, apperrors.Extraction(op, errors.Wrap(err, "create frames directory"), "failed to prepare frames directory")
	}

	log.Info("Extracting frames")
	rate := "fps=1/" + strconv.FormatFloat(interval, 'f', -1, 64)
	_, err := s.Run(ctx, "", s.Binary,
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", rate,
		"-y",
		filepath.Join(framesDir, framePattern),
	)
	if err != nil {
		log.WithError(err).Error("Frame extraction failed")
		return nil, apperrors.Extraction(op, err, "failed to extract frames")
	}

	frames, err := List(framesDir)
	if err != nil {
		return nil, apperrors.Extraction(op, err, "failed to list frames")
	}
	if len(frames) == 0 {
		return nil, apperrors.Extraction(op, nil, "no frames extracted from video")
	}

	if err := os.Remove(videoPath); err != nil {
		log.WithError(err).Warn("Failed to remove source video")
	}

	log.WithField("count", len(frames)).Info("Frames extracted")
	return frames, nil
}

// List returns the frames in dir ordered by their sequence number.
func List(dir string) ([]models.Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read frames directory")
	}

	var frames []models.Frame
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		m := frameName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		frames = append(frames, models.Frame{
			Index: idx,
			Path:  filepath.Join(dir, e.Name()),
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].Index < frames[j].Index
	})
	return frames, nil
}
