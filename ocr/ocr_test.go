package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/models"
	"github.com/nijaru/yt-vision/tools"
)

type stubEngine struct {
	text  map[string]string
	fail  map[string]bool
	calls []string
}

func (s *stubEngine) Recognize(ctx context.Context, path string) (string, error) {
	s.calls = append(s.calls, path)
	if s.fail[path] {
		return "", errors.New("tesseract: read error")
	}
	return s.text[path], nil
}

func framesOf(paths ...string) []models.Frame {
	frames := make([]models.Frame, len(paths))
	for i, p := range paths {
		frames[i] = models.Frame{Index: i + 1, Path: p}
	}
	return frames
}

func TestExtractJoinsInFrameOrder(t *testing.T) {
	engine := &stubEngine{text: map[string]string{
		"a.png": "  Hello \n",
		"b.png": "   ",
		"c.png": "World",
	}}
	frames := framesOf("a.png", "b.png", "c.png")

	res, err := NewExtractor(engine).Extract(context.Background(), frames)
	require.NoError(t, err)

	assert.Equal(t, "Hello\nWorld", res.Text)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, engine.calls)
	assert.Equal(t, "Hello", frames[0].Text)
	assert.Empty(t, frames[1].Text)
	assert.Empty(t, res.Failed)
}

func TestExtractSentinelWhenNoText(t *testing.T) {
	engine := &stubEngine{text: map[string]string{"a.png": "", "b.png": "\n\t"}}

	res, err := NewExtractor(engine).Extract(context.Background(), framesOf("a.png", "b.png"))
	require.NoError(t, err)
	assert.Equal(t, models.NoTextDetected, res.Text)
}

func TestExtractEmptyFrameList(t *testing.T) {
	res, err := NewExtractor(&stubEngine{}).Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.NoTextDetected, res.Text)
}

func TestExtractSkipsFailedFrames(t *testing.T) {
	engine := &stubEngine{
		text: map[string]string{"a.png": "first", "c.png": "third"},
		fail: map[string]bool{"b.png": true},
	}

	res, err := NewExtractor(engine).Extract(context.Background(), framesOf("a.png", "b.png", "c.png"))
	require.NoError(t, err)
	assert.Equal(t, "first\nthird", res.Text)
	assert.Equal(t, []int{2}, res.Failed)
}

func TestExtractFailsWhenEveryFrameFails(t *testing.T) {
	engine := &stubEngine{fail: map[string]bool{"a.png": true, "b.png": true}}

	_, err := NewExtractor(engine).Extract(context.Background(), framesOf("a.png", "b.png"))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindOcr))
	assert.Equal(t, "extracting_text", apperrors.StageOf(err))
}

func TestTesseractEngineArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	engine := &TesseractEngine{
		Binary:   "tesseract",
		Language: "eng",
		Run: func(ctx context.Context, dir, name string, args ...string) (tools.Output, error) {
			gotName, gotArgs = name, args
			return tools.Output{Stdout: []byte("SALE 50%\n")}, nil
		},
	}

	text, err := engine.Recognize(context.Background(), "/tmp/frame_000001.png")
	require.NoError(t, err)
	assert.Equal(t, "SALE 50%\n", text)
	assert.Equal(t, "tesseract", gotName)
	assert.Equal(t, []string{"/tmp/frame_000001.png", "stdout", "-l", "eng"}, gotArgs)
}
