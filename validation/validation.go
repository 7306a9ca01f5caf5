package validation

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/nijaru/yt-vision/tools"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return invalid("error: URL is required")
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return invalid("error: invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return invalid("error: URL must start with http or https")
	}

	if parsedURL.Host == "" {
		return invalid("error: URL must have a host")
	}

	if strings.Contains(parsedURL.Host, "youtube.com") && parsedURL.Path == "/watch" {
		if parsedURL.Query().Get("v") == "" {
			return invalid("error: YouTube URL must contain a valid video ID")
		}
	}

	return nil
}

// ValidateInterval checks a sampling interval in seconds.
func ValidateInterval(interval float64) error {
	if math.IsNaN(interval) || math.IsInf(interval, 0) {
		return invalid("error: interval must be a finite number")
	}
	if interval <= 0 {
		return invalid("error: interval must be greater than 0")
	}
	return nil
}

// ParseInterval parses and validates a user-supplied interval.
func ParseInterval(raw string) (float64, error) {
	interval, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, invalid("error: interval must be a number of seconds")
	}
	return interval, ValidateInterval(interval)
}

// CheckDependencies fails when any of the external tools is missing.
func CheckDependencies(names ...string) error {
	missing := tools.Missing(names...)
	if len(missing) > 0 {
		return invalid("error: missing required tools: " + strings.Join(missing, ", "))
	}
	return nil
}
