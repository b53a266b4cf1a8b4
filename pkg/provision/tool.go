// Package provision shells out to the external provisioning tool
// (terraform/tofu) and configuration manager (ansible-playbook). The tools
// are the workhorses; this package only maps bootstrap operations onto
// their command lines and reports their exit status.
package provision

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ToolError reports an external tool that exited non-zero. ExitCode is
// propagated as the process exit status by the CLI.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s exited with status %d", e.Tool, strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// run executes bin in dir, streaming output to the given writers while
// keeping the tail of stderr for the error message.
func run(ctx context.Context, stdout, stderr io.Writer, dir, bin string, args ...string) error {
	var errBuf strings.Builder

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &errBuf)

	err := cmd.Run()
	if err == nil {
		return nil
	}

	exitCode := -1
	if ee, ok := err.(*exec.ExitError); ok {
		exitCode = ee.ExitCode()
	}
	return &ToolError{
		Tool:     bin,
		Args:     args,
		ExitCode: exitCode,
		Stderr:   lastLine(errBuf.String()),
	}
}

// lastLine returns the final non-empty line of s, which for terraform and
// ansible is where the actual failure reason lands.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func defaultWriter(w io.Writer, fallback *os.File) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
