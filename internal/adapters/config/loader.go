// Package config loads the declarative fab.yaml build script the CLI runs.
package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/fab/internal/core/domain"
	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader reads a fab.yaml file and compiles it into options, a rule
// registry, and a want list. Declarative rules need their dependencies
// first and then run their commands through the executor.
type Loader struct {
	executor ports.Executor
}

// NewLoader creates a Loader running commands through executor.
func NewLoader(executor ports.Executor) *Loader {
	return &Loader{executor: executor}
}

// fabFile represents the structure of the fab.yaml configuration file.
type fabFile struct {
	Version string     `yaml:"version"`
	Options optionsDTO `yaml:"options"`
	Want    []string   `yaml:"want"`
	Rules   []ruleDTO  `yaml:"rules"`
}

type optionsDTO struct {
	Root         string `yaml:"root"`
	Threads      int    `yaml:"threads"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	LogFile      string `yaml:"log_file"`
	FailOnError  bool   `yaml:"fail_on_error"`
}

// ruleDTO declares one rule. Exactly one of Phony and File must be set.
// Each cmd entry is an argv list; $TARGET expands to the resolved target.
type ruleDTO struct {
	Phony string            `yaml:"phony"`
	File  string            `yaml:"file"`
	Need  []string          `yaml:"need"`
	Env   map[string]string `yaml:"env"`
	Cmd   [][]string        `yaml:"cmd"`
}

// Load reads the script at path.
func (l *Loader) Load(path string) (*ports.BuildScript, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read config file")
	}

	var file fabFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.Wrap(err, "failed to parse config file")
	}

	opts, err := l.buildOptions(file.Options, path)
	if err != nil {
		return nil, err
	}

	reg := domain.NewRegistry()
	for _, dto := range file.Rules {
		if err := l.addRule(reg, dto); err != nil {
			return nil, err
		}
	}

	return &ports.BuildScript{Options: opts, Registry: reg, Wants: file.Want}, nil
}

func (l *Loader) buildOptions(dto optionsDTO, path string) (domain.Options, error) {
	opts := domain.Options{
		ProjectRoot: dto.Root,
		Threads:     dto.Threads,
		FileLogPath: dto.LogFile,
		FailOnError: dto.FailOnError,
	}
	if opts.ProjectRoot == "" {
		opts.ProjectRoot = filepath.Dir(path)
	}

	var err error
	if dto.ConsoleLevel != "" {
		if opts.ConsoleLevel, err = domain.ParseLevel(dto.ConsoleLevel); err != nil {
			return domain.Options{}, err
		}
	}
	if dto.FileLevel != "" {
		if opts.FileLevel, err = domain.ParseLevel(dto.FileLevel); err != nil {
			return domain.Options{}, err
		}
	}
	return opts, nil
}

func (l *Loader) addRule(reg *domain.Registry, dto ruleDTO) error {
	switch {
	case dto.Phony != "" && dto.File != "":
		return zerr.With(zerr.With(domain.ErrConfig, "rule", dto.Phony), "reason", "both phony and file set")
	case dto.Phony != "":
		reg.Add(domain.Rule{Pattern: domain.PhonyPattern(dto.Phony), Action: l.buildAction(dto)})
	case dto.File != "":
		pattern, err := domain.FilePattern(dto.File)
		if err != nil {
			return err
		}
		reg.Add(domain.Rule{Pattern: pattern, Action: l.buildAction(dto)})
	default:
		return zerr.With(domain.ErrConfig, "reason", "rule with neither phony nor file")
	}
	return nil
}

// buildAction compiles a declarative rule body: need the dependencies, then
// run each command in order.
func (l *Loader) buildAction(dto ruleDTO) domain.Action {
	env := make([]string, 0, len(dto.Env))
	for k, v := range dto.Env {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)

	return func(ctx context.Context, rc domain.RunContext, target domain.Target) error {
		if len(dto.Need) > 0 {
			if err := rc.Need(ctx, dto.Need...); err != nil {
				return err
			}
		}

		dir := rc.Options().ProjectRoot
		out := newLogWriter(rc, domain.LevelNormal)
		for _, argv := range dto.Cmd {
			resolved := substituteTarget(argv, target)
			rc.Logf(domain.LevelCommand, "%s", strings.Join(resolved, " "))
			if err := l.executor.Execute(ctx, dir, resolved, env, out); err != nil {
				return err
			}
		}
		return nil
	}
}

// substituteTarget expands $TARGET to the resolved target payload.
func substituteTarget(argv []string, target domain.Target) []string {
	resolved := make([]string, len(argv))
	for i, arg := range argv {
		resolved[i] = strings.ReplaceAll(arg, "$TARGET", target.Name())
	}
	return resolved
}
