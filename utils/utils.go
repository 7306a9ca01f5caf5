package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nijaru/yt-vision/models"
)

func HandleError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func WriteJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(v)
}

// FormatText puts each sentence on its own line.
func FormatText(text string) string {
	text = strings.TrimSpace(text)
	var builder strings.Builder
	for _, char := range text {
		builder.WriteRune(char)
		if char == '.' || char == '!' || char == '?' {
			builder.WriteRune('\n')
		}
	}
	return builder.String()
}

// FormatReport renders a result for the terminal.
func FormatReport(r *models.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Duration: %s\n", r.Duration)
	fmt.Fprintf(&b, "Frames: %d\n", r.FrameCount)
	b.WriteString("\nSummary:\n")
	summary := FormatText(r.Summary)
	b.WriteString(summary)
	if !strings.HasSuffix(summary, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\nText on screen:\n")
	b.WriteString(strings.TrimSpace(r.Text))
	b.WriteString("\n")
	return b.String()
}
