package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-vision/config"
)

func TestSetupWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	closer, err := Setup(config.LogConfig{Level: "debug", Format: "json", Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() {
		closer.Close()
		logrus.SetOutput(os.Stderr)
	})

	logrus.WithField("task_id", "abc").Info("hello")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"task_id":"abc"`)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, err := Setup(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
