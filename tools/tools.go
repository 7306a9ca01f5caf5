// Package tools runs the external command-line programs the pipeline
// delegates to (yt-dlp, ffmpeg, tesseract, git).
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Output is what a finished command wrote.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Combined returns stdout followed by stderr, trimmed.
func (o Output) Combined() string {
	return strings.TrimSpace(string(o.Stdout) + string(o.Stderr))
}

// RunFunc executes name with args in dir. Components take a RunFunc so
// tests can replace the real process.
type RunFunc func(ctx context.Context, dir, name string, args ...string) (Output, error)

// Run is the RunFunc backed by os/exec.
func Run(ctx context.Context, dir, name string, args ...string) (Output, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logrus.WithFields(logrus.Fields{
		"tool": name,
		"args": args,
	}).Debug("Executing tool")

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		return out, &Error{Tool: name, Err: err, Output: out.Combined()}
	}
	return out, nil
}

// Error is a failed tool invocation carrying the tool's diagnostics.
type Error struct {
	Tool   string
	Err    error
	Output string
}

func (e *Error) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", e.Tool, e.Err, lastLines(e.Output, 5))
	}
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// Missing returns the names that cannot be found on PATH.
func Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}
