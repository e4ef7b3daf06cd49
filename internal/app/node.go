package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/fab/internal/adapters/config" //nolint:depguard // Wired in app wiring
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/fab/internal/engine/exec"
)

const (
	// AppNodeID is the unique identifier for the application node.
	AppNodeID graft.ID = "app.main"

	// ComponentsNodeID is the unique identifier for the components node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components contains the initialized components the CLI layer needs.
type Components struct {
	App *App
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			exec.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}

			engine, err := graft.Dep[*exec.Engine](ctx)
			if err != nil {
				return nil, err
			}

			return New(loader, engine), nil
		},
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{AppNodeID},
		Run: func(ctx context.Context) (*Components, error) {
			a, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: a}, nil
		},
	})
}
