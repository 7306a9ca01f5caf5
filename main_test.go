package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-vision/config"
	apperrors "github.com/nijaru/yt-vision/errors"
	"github.com/nijaru/yt-vision/notify"
	"github.com/nijaru/yt-vision/publisher"
)

func testConfig(backend string) *config.Config {
	return &config.Config{
		Credential: "sk-test",
		WorkDir:    "/tmp/yt-vision",
		Tools: config.ToolsConfig{
			YtDlp:     "yt-dlp",
			FFmpeg:    "ffmpeg",
			Tesseract: "tesseract",
			Git:       "git",
		},
		Publish: config.PublishConfig{
			Backend:       backend,
			Prefix:        "video-frames/frames",
			RemoteRepoURL: "https://github.com/example/video-frames.git",
			LocalRepoPath: "/tmp/video-frames",
			Branch:        "main",
			PublicBaseURL: "https://raw.githubusercontent.com/example/video-frames/main",
			Bucket:        "frames",
			Region:        "us-east-1",
			Endpoint:      "localhost:9000",
		},
		Description: config.DescriptionConfig{MaxBatchSize: 10},
	}
}

func TestNewStoreSelectsBackend(t *testing.T) {
	tests := []struct {
		backend string
		name    string
	}{
		{config.BackendGit, "git"},
		{config.BackendS3, "s3"},
		{config.BackendMinio, "minio"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := testConfig(tt.backend)
			if tt.backend == config.BackendS3 {
				cfg.Publish.Endpoint = "http://localhost:9000"
				cfg.Publish.AccessKey = "key"
				cfg.Publish.SecretKey = "secret"
			}
			store, err := newStore(context.Background(), cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.name, store.Name())
			var _ publisher.Store = store
		})
	}
}

func TestNewStoreUnknownBackend(t *testing.T) {
	_, err := newStore(context.Background(), testConfig("ftp"))
	assert.Error(t, err)
}

func TestRequiredTools(t *testing.T) {
	assert.Equal(t, []string{"yt-dlp", "ffmpeg", "tesseract", "git"}, requiredTools(testConfig(config.BackendGit)))
	assert.Equal(t, []string{"yt-dlp", "ffmpeg", "tesseract"}, requiredTools(testConfig(config.BackendMinio)))
}

func TestNewNotifierWithoutBroker(t *testing.T) {
	n, closer := newNotifier(testConfig(config.BackendGit))
	assert.IsType(t, notify.Nop{}, n)
	assert.NoError(t, closer.Close())
}

func TestNewOrchestrator(t *testing.T) {
	o, err := newOrchestrator(context.Background(), testConfig(config.BackendGit), nil, nil)
	require.NoError(t, err)
	task := o.NewTask("https://example.com/v", 2)
	assert.True(t, strings.HasPrefix(task.FramesDir, "/tmp/yt-vision/frames/"))
}

func TestRunCLIPromptsAndRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		interval string
		input    string
		prompts  []string
	}{
		{"prompted url is invalid", "", "2", "not-a-url\n", []string{"Enter video URL: "}},
		{"prompted interval is invalid", "https://example.com/v", "", "zero\n", []string{"Enter interval between frames (seconds): "}},
		{"both prompted", "", "", "https://example.com/v\n-1\n", []string{"Enter video URL: ", "Enter interval between frames (seconds): "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := runCLI(context.Background(), testConfig(config.BackendGit), tt.url, tt.interval, false, strings.NewReader(tt.input), &out)

			assert.Equal(t, 2, code)
			for _, p := range tt.prompts {
				assert.Contains(t, out.String(), p)
			}
			assert.Contains(t, out.String(), "error:")
		})
	}
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestPrintErrorJSON(t *testing.T) {
	var out bytes.Buffer
	err := apperrors.Publish("test", nil, "no frame URLs were published")

	printError(&out, err, true)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "publishing", got["stage"])
	assert.Equal(t, "no frame URLs were published", got["error"])
}

func TestPrintErrorLogsEncodeFailure(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	printError(brokenWriter{}, apperrors.Publish("test", nil, "no frame URLs were published"), true)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Failed to encode error report", entry.Message)
}

func TestRunReturnsCodeAndFlushesLog(t *testing.T) {
	logDir := t.TempDir()
	t.Setenv("LOG_DIR", logDir)
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("OPENAI_API_KEY", "")
	t.Cleanup(func() { logrus.SetOutput(os.Stderr) })

	var out bytes.Buffer
	code := run([]string{"-url", "https://example.com/v", "-interval", "2"}, strings.NewReader(""), &out)
	assert.Equal(t, 1, code)

	body, err := os.ReadFile(filepath.Join(logDir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "Invalid configuration")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-bogus"}, strings.NewReader(""), &bytes.Buffer{}))
}
