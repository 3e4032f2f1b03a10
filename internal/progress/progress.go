// Package progress is the side channel the orchestrator and scanner report
// run progress to. Pipeline components never read it back.
//
// Implementations include:
//   - CLIEmitter: spinner and stage lines on a terminal using pterm
//   - JSONEmitter: one JSON event per line for machine consumers
//   - Nop: discards everything
//
// All implementations are safe for concurrent use; scanner workers emit
// progress from many goroutines.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Emitter receives progress events.
type Emitter interface {
	// EmitStage announces a state transition.
	EmitStage(stage string, message string)
	// EmitProgress reports done of total units in the current stage.
	EmitProgress(done, total int)
	// EmitError reports a failure that did not stop the run.
	EmitError(stage string, err error)
	// EmitComplete ends the run.
	EmitComplete(summary map[string]any)
}

// Nop discards all events.
type Nop struct{}

func (Nop) EmitStage(string, string) {}

func (Nop) EmitProgress(int, int) {}

func (Nop) EmitError(string, error) {}

func (Nop) EmitComplete(map[string]any) {}

// Event is one JSON progress record.
type Event struct {
	Type      string         `json:"type"` // "stage", "progress", "error", "complete"
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// JSONEmitter writes events as JSON lines.
type JSONEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

// NewJSONEmitter creates a JSON emitter writing to w.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{enc: json.NewEncoder(w), now: time.Now}
}

func (e *JSONEmitter) emit(typ string, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(Event{Type: typ, Timestamp: e.now(), Data: data})
}

func (e *JSONEmitter) EmitStage(stage string, message string) {
	e.emit("stage", map[string]any{"stage": stage, "message": message})
}

func (e *JSONEmitter) EmitProgress(done, total int) {
	e.emit("progress", map[string]any{"done": done, "total": total})
}

func (e *JSONEmitter) EmitError(stage string, err error) {
	e.emit("error", map[string]any{"stage": stage, "error": err.Error()})
}

func (e *JSONEmitter) EmitComplete(summary map[string]any) {
	e.emit("complete", summary)
}

// CLIEmitter shows a spinner for the active stage. Output goes to w, which
// should be stderr so stdout stays reserved for the evidence package.
type CLIEmitter struct {
	mu          sync.Mutex
	w           io.Writer
	verbosity   int
	interactive bool
	spinner     *pterm.SpinnerPrinter
	stage       string
}

// NewCLIEmitter creates a terminal emitter. When w is not a terminal, stages
// are printed as plain lines and per-source progress is dropped.
func NewCLIEmitter(w io.Writer, verbosity int) *CLIEmitter {
	return &CLIEmitter{w: w, verbosity: verbosity, interactive: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

func (e *CLIEmitter) EmitStage(stage string, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopSpinner()
	e.stage = stage
	text := fmt.Sprintf("%s: %s", pterm.LightCyan(stage), message)
	if !e.interactive {
		pterm.Fprintln(e.w, text)
		return
	}
	sp, err := pterm.DefaultSpinner.WithWriter(e.w).WithRemoveWhenDone(true).Start(text)
	if err != nil {
		pterm.Fprintln(e.w, text)
		return
	}
	e.spinner = sp
}

func (e *CLIEmitter) EmitProgress(done, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.spinner != nil {
		e.spinner.UpdateText(fmt.Sprintf("%s: %d/%d sources", pterm.LightCyan(e.stage), done, total))
	}
}

func (e *CLIEmitter) EmitError(stage string, err error) {
	if e.verbosity < 1 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pterm.Warning.WithWriter(e.w).Printfln("%s: %v", stage, err)
}

func (e *CLIEmitter) EmitComplete(summary map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopSpinner()
	pterm.Success.WithWriter(e.w).Println("Evidence package assembled")
	if e.verbosity >= 1 {
		for _, k := range sortedKeys(summary) {
			pterm.Fprintln(e.w, fmt.Sprintf("  %s: %v", k, summary[k]))
		}
	}
}

func (e *CLIEmitter) stopSpinner() {
	if e.spinner != nil {
		_ = e.spinner.Stop()
		e.spinner = nil
	}
}
