package fileset

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/fab/internal/core/ports"
)

// NodeID is the unique identifier for the fileset expander node.
const NodeID graft.ID = "adapter.fileset"

func init() {
	graft.Register(graft.Node[ports.FilesetExpander]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.FilesetExpander, error) {
			return NewExpander(), nil
		},
	})
}
