// Package container reports container state and logs from the docker or
// podman CLI. A host with neither runtime yields an empty list, not an error.
package container

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/logging"
	"github.com/crimson-sun/rca/internal/model"
)

// Runtime names a container CLI.
type Runtime string

const (
	Podman Runtime = "podman"
	Docker Runtime = "docker"
)

// DefaultLogLines is how many trailing log lines Logs fetches.
const DefaultLogLines = 100

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Wrapf(err, "%s %s: %s", name, strings.Join(args, " "), msg)
		}
		return nil, errors.Wrapf(err, "%s %s", name, strings.Join(args, " "))
	}
	return out, nil
}

// Monitor lists containers for the first runtime found on PATH.
type Monitor struct {
	runtimes []Runtime
	run      Runner
	lookPath func(string) (string, error)
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRuntimes sets the runtimes probed, in preference order.
func WithRuntimes(rs ...Runtime) Option {
	return func(m *Monitor) { m.runtimes = rs }
}

// WithRunner replaces command execution.
func WithRunner(r Runner) Option {
	return func(m *Monitor) { m.run = r }
}

// WithLookPath replaces the PATH lookup used to detect runtimes.
func WithLookPath(f func(string) (string, error)) Option {
	return func(m *Monitor) { m.lookPath = f }
}

// WithTimeout bounds each CLI invocation.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewMonitor creates a Monitor preferring podman over docker.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		runtimes: []Runtime{Podman, Docker},
		run:      execRunner,
		lookPath: exec.LookPath,
		timeout:  10 * time.Second,
		log:      logging.Named("container"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Runtime returns the detected runtime, or "" if none is installed.
func (m *Monitor) Runtime() Runtime {
	for _, r := range m.runtimes {
		if _, err := m.lookPath(string(r)); err == nil {
			return r
		}
	}
	return ""
}

// ListContainers returns every container, running or not, sorted by name.
// Stats are merged in when available; a stats failure only drops them.
func (m *Monitor) ListContainers(ctx context.Context) ([]model.ContainerSignal, error) {
	rt := m.Runtime()
	if rt == "" {
		return nil, nil
	}

	out, err := m.exec(ctx, rt, "ps", "-a", "--format", "json")
	if err != nil {
		return nil, errors.WrapCollaborator(err, string(rt))
	}
	rows, err := decodeRows(out)
	if err != nil {
		return nil, errors.WrapCollaborator(errors.Wrap(err, "decode ps output"), string(rt))
	}

	containers := make([]model.ContainerSignal, 0, len(rows))
	for _, row := range rows {
		c := model.ContainerSignal{
			ID:      str(row, "ID", "Id", "id"),
			Name:    firstName(row),
			Runtime: string(rt),
			State:   strings.ToLower(str(row, "State", "state")),
			Status:  str(row, "Status", "status"),
		}
		c.Healthy = healthy(c)
		containers = append(containers, c)
	}

	if len(containers) > 0 {
		m.mergeStats(ctx, rt, containers)
	}
	sort.Slice(containers, func(i, j int) bool { return containers[i].Name < containers[j].Name })
	return containers, nil
}

func (m *Monitor) mergeStats(ctx context.Context, rt Runtime, containers []model.ContainerSignal) {
	out, err := m.exec(ctx, rt, "stats", "--no-stream", "--format", "json")
	if err != nil {
		m.log.Debugw("container stats unavailable", "runtime", rt, logging.FieldError, err)
		return
	}
	rows, err := decodeRows(out)
	if err != nil {
		m.log.Debugw("container stats undecodable", "runtime", rt, logging.FieldError, err)
		return
	}
	type usage struct{ cpu, mem float64 }
	byKey := make(map[string]usage, len(rows))
	for _, row := range rows {
		u := usage{
			cpu: percent(str(row, "CPUPerc", "cpu_percent", "CPU")),
			mem: percent(str(row, "MemPerc", "mem_percent", "MemPercent")),
		}
		if id := str(row, "ID", "Id", "id", "ContainerID"); id != "" {
			byKey[id] = u
		}
		if name := str(row, "Name", "name"); name != "" {
			byKey[name] = u
		}
	}
	for i := range containers {
		u, ok := byKey[containers[i].ID]
		if !ok {
			u, ok = byKey[shortID(containers[i].ID)]
		}
		if !ok {
			u, ok = byKey[containers[i].Name]
		}
		if ok {
			containers[i].CPUPct = u.cpu
			containers[i].MemPct = u.mem
		}
	}
}

// Logs returns the last lines of one container's output. Both stdout and
// stderr of the container are captured.
func (m *Monitor) Logs(ctx context.Context, c model.ContainerSignal, lines int) ([]byte, error) {
	if lines <= 0 {
		lines = DefaultLogLines
	}
	rt := Runtime(c.Runtime)
	if rt == "" {
		rt = m.Runtime()
	}
	if rt == "" {
		return nil, errors.WrapCollaborator(errors.New("no container runtime"), "container")
	}
	id := c.ID
	if id == "" {
		id = c.Name
	}
	out, err := m.exec(ctx, rt, "logs", "--tail", strconv.Itoa(lines), id)
	return out, errors.WrapCollaborator(err, string(rt))
}

func (m *Monitor) exec(ctx context.Context, rt Runtime, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.run(ctx, string(rt), args...)
}

// decodeRows accepts podman's JSON array and docker's one-object-per-line.
func decodeRows(out []byte) ([]map[string]any, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}
	if out[0] == '[' {
		var rows []map[string]any
		if err := json.Unmarshal(out, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var rows []map[string]any
	dec := json.NewDecoder(bytes.NewReader(out))
	for dec.More() {
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func str(row map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := row[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstName handles docker's comma-joined string and podman's list.
func firstName(row map[string]any) string {
	switch v := row["Names"].(type) {
	case string:
		name, _, _ := strings.Cut(v, ",")
		return strings.TrimPrefix(name, "/")
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return strings.TrimPrefix(s, "/")
			}
		}
	}
	if n := str(row, "Name", "name"); n != "" {
		return strings.TrimPrefix(n, "/")
	}
	return "unknown"
}

func percent(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)
	if err != nil {
		return 0
	}
	return f
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// healthy is false for a failing health check, a restart loop, a dead
// container or one that exited non-zero.
func healthy(c model.ContainerSignal) bool {
	status := strings.ToLower(c.Status)
	switch {
	case strings.Contains(status, "unhealthy"):
		return false
	case c.State == "restarting" || c.State == "dead":
		return false
	case c.State == "exited":
		return strings.Contains(status, "exited (0)")
	}
	return true
}
