package exec

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/fab/internal/adapters/fileset"            //nolint:depguard // Wired in engine wiring
	"go.trai.ch/fab/internal/adapters/fs"                 //nolint:depguard // Wired in engine wiring
	"go.trai.ch/fab/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/fab/internal/core/ports"
)

// NodeID is the unique identifier for the engine Graft node.
const NodeID graft.ID = "engine.exec"

func init() {
	graft.Register(graft.Node[*Engine]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			progrock.NodeID,
			fs.FingerprinterNodeID,
			fileset.NodeID,
		},
		Run: func(ctx context.Context) (*Engine, error) {
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			fp, err := graft.Dep[ports.Fingerprinter](ctx)
			if err != nil {
				return nil, err
			}

			expand, err := graft.Dep[ports.FilesetExpander](ctx)
			if err != nil {
				return nil, err
			}

			return NewEngine(tracer, fp, expand), nil
		},
	})
}
