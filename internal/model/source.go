package model

import (
	"fmt"
	"time"
)

// SourceKind identifies how a log source is read.
type SourceKind string

const (
	KindFile         SourceKind = "file"
	KindStream       SourceKind = "stream"
	KindContainerLog SourceKind = "container_log"
)

// LogSource is one discovered log location. Immutable after discovery and
// discarded after a single run.
type LogSource struct {
	Path         string     `json:"path"`
	Kind         SourceKind `json:"kind"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	SizeBytes    int64      `json:"size_bytes"`
	LastModified time.Time  `json:"last_modified"`
}

// Key uniquely identifies a source within one run.
func (s LogSource) Key() string {
	return string(s.Kind) + ":" + s.Path
}

func (s LogSource) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.Path)
}

// Less orders sources by LastModified descending, ties broken by path.
// This is the deterministic presentation order of an evidence package.
func (s LogSource) Less(o LogSource) bool {
	if !s.LastModified.Equal(o.LastModified) {
		return s.LastModified.After(o.LastModified)
	}
	if s.Path != o.Path {
		return s.Path < o.Path
	}
	return s.Kind < o.Kind
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowEndingAt returns the window covering the given number of hours before end.
func WindowEndingAt(end time.Time, hours int) Window {
	return Window{Start: end.Add(-time.Duration(hours) * time.Hour), End: end}
}

// Contains reports whether t falls inside the window. The start is inclusive;
// the end is exclusive so future-dated entries are discarded.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// SourceError records a source that could not be processed.
type SourceError struct {
	Source LogSource `json:"source"`
	Reason string    `json:"reason"`
}

// Clamp moves t into the window. Stream sources have no file mtime; their
// timestamp is clamped so every scanned source satisfies Contains.
func (w Window) Clamp(t time.Time) time.Time {
	if t.Before(w.Start) {
		return w.Start
	}
	if !t.Before(w.End) {
		return w.End.Add(-time.Nanosecond)
	}
	return t
}
