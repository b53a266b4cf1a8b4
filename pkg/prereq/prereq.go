// Package prereq locates the external tools a bootstrap run shells out
// to. stackboot never installs or reimplements them; a missing binary
// fails the run before the tool is ever invoked.
package prereq

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Environment overrides for tool binaries.
const (
	TerraformBinEnv = "STACKBOOT_TERRAFORM_BIN"
	AnsibleBinEnv   = "STACKBOOT_ANSIBLE_BIN"
)

// NotFoundError reports a required external tool that is not installed.
type NotFoundError struct {
	Candidates []string
	EnvVar     string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("required tool not found: install %s", strings.Join(e.Candidates, " or "))
	if e.EnvVar != "" {
		msg += ", or set " + e.EnvVar
	}
	return msg
}

// Check verifies that a binary named in a bundle's required_tools list is
// on PATH.
func Check(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return &NotFoundError{Candidates: []string{name}}
	}
	return nil
}

// Tool is a resolved external tool binary.
type Tool struct {
	Path string // absolute path to the binary
	Name string // binary name, e.g. "terraform" or "tofu"
}

// Detect finds a tool binary by first checking the env var override, then
// searching PATH for each candidate in order.
func Detect(envVar string, candidates ...string) (*Tool, error) {
	if override := os.Getenv(envVar); override != "" {
		path, err := exec.LookPath(override)
		if err != nil {
			return nil, fmt.Errorf("%s=%q not found in PATH: %w", envVar, override, err)
		}
		name := override
		// Normalise to just the binary name if a full path was given.
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		return &Tool{Path: path, Name: name}, nil
	}

	for _, candidate := range candidates {
		path, err := exec.LookPath(candidate)
		if err == nil {
			return &Tool{Path: path, Name: candidate}, nil
		}
	}

	return nil, &NotFoundError{Candidates: candidates, EnvVar: envVar}
}

// Terraform resolves the provisioning tool binary: terraform, or tofu as
// a drop-in.
func Terraform() (*Tool, error) {
	return Detect(TerraformBinEnv, "terraform", "tofu")
}

// Ansible resolves the configuration manager binary.
func Ansible() (*Tool, error) {
	return Detect(AnsibleBinEnv, "ansible-playbook")
}
