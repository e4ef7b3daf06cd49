// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/fab/internal/adapters/config"
	_ "go.trai.ch/fab/internal/adapters/fileset"
	_ "go.trai.ch/fab/internal/adapters/fs"
	_ "go.trai.ch/fab/internal/adapters/shell"
	_ "go.trai.ch/fab/internal/adapters/telemetry/progrock"
	// Register app and engine nodes.
	_ "go.trai.ch/fab/internal/app"
	_ "go.trai.ch/fab/internal/engine/exec"
)
