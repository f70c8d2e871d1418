package handlers

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
)

// ExecRuntime is the default ContainerRuntime: it shells out to the
// docker and docker compose CLIs and reports their exit status and
// captured output verbatim. It does not parse command output; callers
// that need structured state (health, existence) use other means
// (health probes, project store fields) rather than scraping stdout.
type ExecRuntime struct {
	// DockerBin and ComposeArgs let tests and unusual hosts point at a
	// non-default docker binary or compose invocation shape (e.g.
	// "docker-compose" instead of "docker compose").
	DockerBin   string
	ComposeArgs []string
}

// NewExecRuntime returns an ExecRuntime using "docker" and "docker
// compose" as found on PATH.
func NewExecRuntime() *ExecRuntime {
	return &ExecRuntime{DockerBin: "docker", ComposeArgs: []string{"compose"}}
}

func (r *ExecRuntime) run(ctx context.Context, dir string, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, r.DockerBin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result := ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		result.Success = true
		return result, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}

func (r *ExecRuntime) composeArgs(extra ...string) []string {
	return append(append([]string{}, r.ComposeArgs...), extra...)
}

// ComposeUp runs "docker compose up -d" rooted at projectDir.
func (r *ExecRuntime) ComposeUp(ctx context.Context, projectDir string) (ExecResult, error) {
	return r.run(ctx, projectDir, r.composeArgs("up", "-d")...)
}

// ComposeStop runs "docker compose stop" rooted at projectDir.
func (r *ExecRuntime) ComposeStop(ctx context.Context, projectDir string) (ExecResult, error) {
	return r.run(ctx, projectDir, r.composeArgs("stop")...)
}

// ComposeDown runs "docker compose down", optionally with -v.
func (r *ExecRuntime) ComposeDown(ctx context.Context, projectDir string, removeVolumes bool) (ExecResult, error) {
	args := r.composeArgs("down")
	if removeVolumes {
		args = append(args, "-v")
	}
	return r.run(ctx, projectDir, args...)
}

// BuildImage runs "docker build -t tag dir".
func (r *ExecRuntime) BuildImage(ctx context.Context, dir, tag string) (ExecResult, error) {
	return r.run(ctx, "", "build", "-t", tag, dir)
}

// RunContainer runs "docker run -d" with the given name, image, port
// mapping and env file, rooted at spec.Dir so relative paths (the env
// file) resolve against the production directory.
func (r *ExecRuntime) RunContainer(ctx context.Context, spec ContainerSpec) (ExecResult, error) {
	args := []string{"run", "-d", "--name", spec.Name}
	if spec.EnvFile != "" {
		args = append(args, "--env-file", spec.EnvFile)
	}
	if spec.Port != 0 {
		args = append(args, "-p", portMapping(spec.Port))
	}
	args = append(args, spec.Image)
	return r.run(ctx, spec.Dir, args...)
}

func portMapping(port int) string {
	p := strconv.Itoa(port)
	return p + ":" + p
}

// RemoveContainer runs "docker rm -f name".
func (r *ExecRuntime) RemoveContainer(ctx context.Context, name string) (ExecResult, error) {
	return r.run(ctx, "", "rm", "-f", name)
}

// RemoveImage runs "docker rmi tag".
func (r *ExecRuntime) RemoveImage(ctx context.Context, tag string) (ExecResult, error) {
	return r.run(ctx, "", "rmi", tag)
}

// PushAuth writes apiKey into the session container's auth file via
// "docker compose exec", rooted at projectDir.
func (r *ExecRuntime) PushAuth(ctx context.Context, projectDir, apiKey string) (ExecResult, error) {
	script := "mkdir -p ~/.config/opencode && printf '%s' \"$DOCEQ_API_KEY\" > ~/.config/opencode/auth.json"
	cmd := exec.CommandContext(ctx, r.DockerBin, r.composeArgs("exec", "-T", "-e", "DOCEQ_API_KEY="+apiKey, "session", "sh", "-c", script)...)
	cmd.Dir = projectDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		result.Success = true
		return result, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}
