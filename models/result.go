package models

import "fmt"

type Duration struct {
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

func (d Duration) String() string {
	return fmt.Sprintf("%d min %d sec", d.Minutes, d.Seconds)
}

// NoTextDetected is reported when OCR finds no text in any frame.
const NoTextDetected = "no text detected"

// AnalysisResult is the final report of a completed task.
type AnalysisResult struct {
	TaskID      string      `json:"task_id"`
	SourceURL   string      `json:"source_url"`
	Duration    Duration    `json:"duration"`
	FrameCount  int         `json:"frame_count"`
	Summary     string      `json:"summary"`
	Text        string      `json:"text"`
	Description Description `json:"-"`
}
