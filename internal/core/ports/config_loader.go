package ports

import "go.trai.ch/fab/internal/core/domain"

// BuildScript is a loaded declarative build description: the options, the
// rule registry compiled from it, and the default want list.
type BuildScript struct {
	Options  domain.Options
	Registry *domain.Registry
	Wants    []string
}

// ConfigLoader loads a declarative build script for the CLI.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the script at path.
	Load(path string) (*BuildScript, error)
}
