package multi

import (
	"context"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/output"
)

// Multi hands one evidence package to several sinks in order. A failing
// sink does not stop delivery to the rest; a cancelled context does, since
// sinks after it would only fail the same way.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi over outputs. Nil entries are dropped so callers can
// pass optional sinks unconditionally.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len reports the number of sinks.
func (m *Multi) Len() int { return len(m.outputs) }

// Write delivers pkg to every sink. Each error names the sink position.
func (m *Multi) Write(ctx context.Context, pkg *model.EvidencePackage) error {
	if pkg == nil {
		return errors.New("multi: nil evidence package")
	}
	var errs []error
	for i, o := range m.outputs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, errors.Wrapf(err, "sink %d of %d not reached", i+1, len(m.outputs)))
			break
		}
		if err := o.Write(ctx, pkg); err != nil {
			errs = append(errs, errors.Wrapf(err, "sink %d", i+1))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, including those Write never reached.
func (m *Multi) Close() error {
	var errs []error
	for i, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close sink %d", i+1))
		}
	}
	return errors.Join(errs...)
}
