// Package shell provides the command executor for declarative rules.
package shell

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/fab/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor using os/exec.
type Executor struct{}

// NewExecutor creates a new Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs argv in dir. The extra env entries are merged over the
// process environment, with PATH entries prepended rather than replaced so
// rule-provided toolchains shadow the system ones.
func (e *Executor) Execute(ctx context.Context, dir string, argv []string, env []string, out io.Writer) error {
	if len(argv) == 0 {
		return nil
	}

	name := argv[0]
	cmdEnv := mergeEnvironment(os.Environ(), env)

	// Resolve the executable against the merged PATH, not the process one.
	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, argv[1:]...) //nolint:gosec // user provided command

	// exec.CommandContext sets Args[0] to the executable path; keep the
	// name as invoked.
	if len(cmd.Args) > 0 {
		cmd.Args[0] = name
	}

	cmd.Dir = dir
	cmd.Env = cmdEnv
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		wrapped := zerr.With(zerr.Wrap(err, "command failed"), "command", name)
		return zerr.With(wrapped, "exit_code", exitCode)
	}
	return nil
}

// mergeEnvironment overlays extra entries on the system environment. PATH
// is prepended, everything else replaced.
func mergeEnvironment(sysEnv, extra []string) []string {
	envMap := make(map[string]string, len(sysEnv))
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}

	for _, entry := range extra {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" {
			if sysPath, exists := envMap["PATH"]; exists && sysPath != "" {
				envMap[k] = v + string(os.PathListSeparator) + sysPath
				continue
			}
		}
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

// lookPath searches for an executable in the directories named by the PATH
// entry of env.
func lookPath(file string, env []string) (string, error) {
	var pathVar string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			pathVar = strings.TrimPrefix(e, "PATH=")
			break
		}
	}
	if pathVar == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(pathVar) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
