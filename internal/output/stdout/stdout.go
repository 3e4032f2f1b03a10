package stdout

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/crimson-sun/rca/internal/errors"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/output"
)

// Output writes encoded evidence packages to stdout.
type Output struct {
	mu  sync.Mutex
	w   io.Writer
	enc output.Encoding
}

// New creates a stdout Output. Stdout is resolved at construction so tests
// can redirect it.
func New(enc output.Encoding) *Output {
	return &Output{w: os.Stdout, enc: enc}
}

func (o *Output) Write(_ context.Context, pkg *model.EvidencePackage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(o.w, pkg); err != nil {
		return errors.Wrap(err, "stdout output")
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
