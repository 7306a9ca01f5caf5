package models

import (
	"fmt"
	"strings"
)

// Frame is one sampled still image. Index is 1-based and follows the
// temporal order of the source video.
type Frame struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	URL   string `json:"url,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Batch is a contiguous run of frame URLs sent in one description call.
type Batch struct {
	Index int      `json:"index"`
	Start int      `json:"start"`
	URLs  []string `json:"urls"`
}

// BatchResult is the outcome of one description call. A non-nil Err marks
// the segment as a placeholder.
type BatchResult struct {
	Batch Batch  `json:"batch"`
	Text  string `json:"text,omitempty"`
	Err   error  `json:"-"`
}

func (r BatchResult) Failed() bool {
	return r.Err != nil
}

// Placeholder is the stand-in text used when the call for this batch failed.
func (r BatchResult) Placeholder() string {
	first := r.Batch.Start + 1
	last := r.Batch.Start + len(r.Batch.URLs)
	return fmt.Sprintf("[description unavailable for frames %d-%d]", first, last)
}

// NoFramesText is returned when there is nothing to describe.
const NoFramesText = "error: no frames available for description"

// Description is the structured output of the batching stage.
type Description struct {
	Segments []BatchResult `json:"segments"`

	// Condensed is set when the segments were summarized once more.
	Condensed string `json:"condensed,omitempty"`
}

// Summary flattens the description into the final narrative text.
func (d Description) Summary() string {
	if d.Condensed != "" {
		return d.Condensed
	}
	if len(d.Segments) == 0 {
		return NoFramesText
	}
	return d.Joined()
}

// Joined concatenates segment texts in batch order, substituting
// placeholders for failed batches.
func (d Description) Joined() string {
	parts := make([]string, 0, len(d.Segments))
	for _, s := range d.Segments {
		if s.Failed() {
			parts = append(parts, s.Placeholder())
			continue
		}
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n")
}

// Failed returns the placeholder segments.
func (d Description) Failed() []BatchResult {
	var failed []BatchResult
	for _, s := range d.Segments {
		if s.Failed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Succeeded counts segments with real text.
func (d Description) Succeeded() int {
	return len(d.Segments) - len(d.Failed())
}
