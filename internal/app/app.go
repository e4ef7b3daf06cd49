// Package app implements the application layer for fab.
package app

import (
	"context"

	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/fab/internal/engine/exec"
	"go.trai.ch/zerr"
)

// App represents the main application logic behind the CLI.
type App struct {
	loader ports.ConfigLoader
	engine *exec.Engine
}

// New creates a new App instance.
func New(loader ports.ConfigLoader, engine *exec.Engine) *App {
	return &App{loader: loader, engine: engine}
}

// Run loads the build script at configPath and builds the requested
// targets. A non-empty target list from the CLI overrides the script's
// want list.
func (a *App) Run(ctx context.Context, configPath string, targets []string) error {
	script, err := a.loader.Load(configPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	opts := script.Options
	if len(targets) > 0 {
		opts.Want = targets
	}

	if err := a.engine.Run(ctx, opts, script.Registry, script.Wants); err != nil {
		return zerr.Wrap(err, "build execution failed")
	}
	return nil
}
