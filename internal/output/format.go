package output

import (
	"io"

	"github.com/crimson-sun/rca/internal/engine/compactor"
	"github.com/crimson-sun/rca/internal/model"
	"github.com/crimson-sun/rca/internal/report"
)

// Encoding controls how a sink serializes a package.
type Encoding struct {
	Format    report.Format
	Pretty    bool
	Verbosity compactor.Verbosity
}

// Encode trims pkg according to verbosity and writes it to w.
// At Minimal: one excerpt per finding, no per-process list.
// At Standard/Full: the package is written as assembled.
func (e Encoding) Encode(w io.Writer, pkg *model.EvidencePackage) error {
	return report.Encode(w, report.Trim(pkg, e.Verbosity), e.Format, e.Pretty)
}
