package fetcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/tools"
)

const outputName = "downloaded_video.mp4"

// Fetcher downloads a remote video with yt-dlp. Downloads are never retried
// here; retrying a large download is left to the caller.
type Fetcher struct {
	Binary string
	Run    tools.RunFunc
}

func New(binary string) *Fetcher {
	return &Fetcher{
		Binary: binary,
		Run:    tools.Run,
	}
}

// Fetch writes exactly one video file into destDir and returns its path.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, destDir string) (string, error) {
	const op = "Fetcher.Fetch"
	log := logrus.WithFields(logrus.Fields{
		"url":  sourceURL,
		"dest": destDir,
	})

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", apperrors.Fetch(op, errors.Wrap(err, "create destination directory"), "failed to prepare download")
	}

	target := filepath.Join(destDir, outputName)
	log.Info("Downloading video")

	_, err := f.Run(ctx, destDir, f.Binary,
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"-f", "best",
		"-o", target,
		sourceURL,
	)
	if err != nil {
		log.WithError(err).Error("Video download failed")
		return "", apperrors.Fetch(op, err, "failed to download video")
	}

	path, err := singleFile(destDir)
	if err != nil {
		log.WithError(err).Error("Downloaded video not found")
		return "", apperrors.Fetch(op, err, "failed to download video")
	}

	log.WithField("path", path).Info("Video downloaded")
	return path, nil
}

// singleFile returns the only regular file in dir. yt-dlp may pick a
// different container extension than the one requested.
func singleFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, "read destination directory")
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}

	switch len(files) {
	case 0:
		return "", errors.New("no video file was written")
	case 1:
		return files[0], nil
	default:
		return "", errors.Errorf("expected one video file, found %d", len(files))
	}
}
