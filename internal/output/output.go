package output

import (
	"context"

	"github.com/crimson-sun/rca/internal/model"
)

// Output defines the interface for evidence package destinations.
type Output interface {
	Write(ctx context.Context, pkg *model.EvidencePackage) error
	Close() error
}
