package frames

import (
	"math"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/nijaru/yt-vision/models"
)

// ErrNoDuration is returned when the diagnostics carry no duration field.
var ErrNoDuration = errors.New("duration not found in ffmpeg output")

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseDuration reads ffmpeg's diagnostic stream and converts the
// "Duration: HH:MM:SS[.ff]" field into whole minutes and seconds. Hours are
// folded into minutes and fractional seconds are rounded half to even, so
// 14.5 becomes 14 and 15.5 becomes 16.
func ParseDuration(diagnostics string) (models.Duration, error) {
	m := durationPattern.FindStringSubmatch(diagnostics)
	if m == nil {
		return models.Duration{}, ErrNoDuration
	}

	hours, err := strconv.Atoi(m[1])
	if err != nil {
		return models.Duration{}, errors.Wrap(err, "parse hours")
	}
	minutes, err := strconv.Atoi(m[2])
	if err != nil {
		return models.Duration{}, errors.Wrap(err, "parse minutes")
	}
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return models.Duration{}, errors.Wrap(err, "parse seconds")
	}

	total := hours*60 + minutes
	secs := int(math.RoundToEven(seconds))
	if secs >= 60 {
		total += secs / 60
		secs %= 60
	}
	return models.Duration{Minutes: total, Seconds: secs}, nil
}
