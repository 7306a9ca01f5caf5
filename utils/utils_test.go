package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nijaru/yt-vision/models"
)

func TestHandleError(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleError(rr, "Test error", http.StatusBadRequest)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expected := `{"error":"Test error"}`
	if strings.TrimSpace(rr.Body.String()) != strings.TrimSpace(expected) {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	if err := WriteJSON(rr, http.StatusAccepted, map[string]string{"task_id": "abc"}); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusAccepted {
		t.Errorf("got status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("got content type %q", ct)
	}
}

func TestFormatText(t *testing.T) {
	input := "This is a test. This is only a test!"
	expected := "This is a test.\n This is only a test!\n"
	output := FormatText(input)

	if output != expected {
		t.Errorf("expected '%s', got '%s'", expected, output)
	}
}

func TestFormatReport(t *testing.T) {
	r := &models.AnalysisResult{
		Duration:   models.Duration{Minutes: 2, Seconds: 15},
		FrameCount: 68,
		Summary:    "A cooking demo.\n",
		Text:       models.NoTextDetected,
	}

	expected := "Duration: 2 min 15 sec\nFrames: 68\n\nSummary:\nA cooking demo.\n\nText on screen:\nno text detected\n"
	if got := FormatReport(r); got != expected {
		t.Errorf("unexpected report:\n%s", got)
	}
}
