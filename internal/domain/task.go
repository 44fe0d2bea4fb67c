package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// CaptionMode selects how the directory processor discovers work.
type CaptionMode string

const (
	// ModePromptComparison uses each text file's content as the prompt and overwrites it.
	ModePromptComparison CaptionMode = "prompt"
	// ModeDirect captions every image with a fixed prompt.
	ModeDirect CaptionMode = "direct"
)

// CaptionTask pairs an image with the text file that receives its caption.
type CaptionTask struct {
	ImagePath string
	TextPath  string
	Index     int // 1-based position in the enumeration
	Total     int
}

// DisplayName is the file name shown in progress output.
// Prompt-comparison tasks are named after the text file, direct tasks after the image.
func (t CaptionTask) DisplayName(mode CaptionMode) string {
	if mode == ModeDirect {
		return filepath.Base(t.ImagePath)
	}
	return filepath.Base(t.TextPath)
}

// SwapExt replaces the extension of path with ext. The match is case-sensitive:
// only the final extension is replaced, whatever its case.
func SwapExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// FileFailure records a single file whose processing failed.
type FileFailure struct {
	Path string
	Err  error
}

// RunStats holds statistics for one directory run.
type RunStats struct {
	TotalItems     int
	ProcessedItems int
	SkippedItems   int
	FailedItems    int
	Failures       []FileFailure
	StartTime      time.Time
	EndTime        time.Time
}

// RecordFailure counts a failed file and keeps its error for the summary.
func (s *RunStats) RecordFailure(path string, err error) {
	s.FailedItems++
	s.Failures = append(s.Failures, FileFailure{Path: path, Err: err})
}

// HasFailures reports whether any file failed.
func (s *RunStats) HasFailures() bool {
	return s.FailedItems > 0
}

// Duration returns the wall-clock time of the run.
func (s *RunStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}
