package handlers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// CommandBuilder is the default Builder: it shells out to a configured
// build command (e.g. "npm run build") rooted at the project directory
// and reports the configured output directory, treating the build
// command itself as opaque per the spec's external-collaborator
// framing, same as ExecRuntime for the container runtime.
type CommandBuilder struct {
	// Command and Args are the build invocation, e.g. "npm" ["run",
	// "build"].
	Command string
	Args    []string

	// OutputSubdir is the build output directory relative to the
	// project directory, e.g. "dist" or "build".
	OutputSubdir string
}

// Build runs the configured command in projectDir and returns the
// output directory path once the command exits zero.
func (b *CommandBuilder) Build(ctx context.Context, projectDir string) (string, error) {
	cmd := exec.CommandContext(ctx, b.Command, b.Args...)
	cmd.Dir = projectDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		return "", fmt.Errorf("build command failed: %w: %s", err, msg)
	}
	return projectDir + "/" + b.OutputSubdir, nil
}
