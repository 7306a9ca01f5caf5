package frames

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-vision/models"
)

const ffmpegBanner = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'downloaded_video.mp4':
  Metadata:
    major_brand     : isom
  Duration: %s, start: 0.000000, bitrate: 1205 kb/s
  Stream #0:0[0x1](und): Video: h264 (High) (avc1 / 0x31637661), yuv420p, 1080x1920`

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  models.Duration
	}{
		{"typical", "  Duration: 00:02:15.30, start: 0.000000", models.Duration{Minutes: 2, Seconds: 15}},
		{"rounds down at .5 to even", "Duration: 00:00:14.50, start", models.Duration{Minutes: 0, Seconds: 14}},
		{"rounds up at .5 to even", "Duration: 00:00:15.50, start", models.Duration{Minutes: 0, Seconds: 16}},
		{"rounds above half", "Duration: 00:01:07.51,", models.Duration{Minutes: 1, Seconds: 8}},
		{"no fraction", "Duration: 00:03:09,", models.Duration{Minutes: 3, Seconds: 9}},
		{"hours fold into minutes", "Duration: 01:02:03.00,", models.Duration{Minutes: 62, Seconds: 3}},
		{"rounding carries a minute", "Duration: 00:04:59.70,", models.Duration{Minutes: 5, Seconds: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDurationFromBanner(t *testing.T) {
	got, err := ParseDuration(sprintfBanner("00:02:15.30"))
	require.NoError(t, err)
	assert.Equal(t, models.Duration{Minutes: 2, Seconds: 15}, got)
}

func TestParseDurationMissing(t *testing.T) {
	_, err := ParseDuration("Input #0, mov\n  Duration: N/A, bitrate: N/A")
	assert.ErrorIs(t, err, ErrNoDuration)
}
