package ocr

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/models"
	"github.com/nijaru/yt-vision/tools"
)

// Engine recognizes the text in one image.
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TesseractEngine shells out to the tesseract CLI.
type TesseractEngine struct {
	Binary   string
	Language string
	Run      tools.RunFunc
}

func NewTesseract(binary, language string) *TesseractEngine {
	return &TesseractEngine{
		Binary:   binary,
		Language: language,
		Run:      tools.Run,
	}
}

func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout"}
	if e.Language != "" {
		args = append(args, "-l", e.Language)
	}
	out, err := e.Run(ctx, "", e.Binary, args...)
	if err != nil {
		return "", err
	}
	return string(out.Stdout), nil
}

// Result is the outcome of one extraction pass.
type Result struct {
	Text string

	// Failed lists the indexes of frames the engine could not read.
	Failed []int
}

// Extractor runs an Engine over frames in sequence order.
type Extractor struct {
	engine Engine
}

func NewExtractor(engine Engine) *Extractor {
	return &Extractor{engine: engine}
}

// Extract joins the non-empty text of every frame with newlines. A frame
// the engine fails on contributes nothing; the stage only fails when no
// frame could be read at all. Frames are updated in place with their text.
func (x *Extractor) Extract(ctx context.Context, frames []models.Frame) (Result, error) {
	const op = "Extractor.Extract"

	var (
		parts   []string
		res     Result
		lastErr error
	)

	for i := range frames {
		if err := ctx.Err(); err != nil {
			return Result{}, apperrors.Ocr(op, err, "text extraction cancelled")
		}

		text, err := x.engine.Recognize(ctx, frames[i].Path)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"stage": "extracting_text",
				"frame": frames[i].Index,
			}).Warn("OCR failed for frame, skipping")
			res.Failed = append(res.Failed, frames[i].Index)
			lastErr = err
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		frames[i].Text = text
		parts = append(parts, text)
	}

	if len(frames) > 0 && len(res.Failed) == len(frames) {
		return res, apperrors.Ocr(op, lastErr, "text extraction failed for every frame")
	}

	if len(parts) == 0 {
		res.Text = models.NoTextDetected
	} else {
		res.Text = strings.Join(parts, "\n")
	}

	logrus.WithFields(logrus.Fields{
		"frames":  len(frames),
		"matched": len(parts),
		"failed":  len(res.Failed),
	}).Info("Text extraction finished")
	return res, nil
}
