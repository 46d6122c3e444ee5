// Package ids generates stable opaque node identifiers (spec.md §3) when
// an operator does not pin an explicit ID, grounded in the teacher's use
// of rs/xid for its UUID type (distributed-queue/pkg/domain/domain.go).
package ids

import (
	"github.com/rs/xid"

	"github.com/andr35/DS2-Project/internal/detect"
)

// New generates a fresh opaque NodeID.
func New() detect.NodeID {
	return detect.NodeID(xid.New().String())
}
