package provision

import (
	"context"
	"io"
	"os"
)

// Terraform runs the provisioning tool against one configuration
// directory. Bin is the resolved terraform or tofu binary.
type Terraform struct {
	Bin string
	Dir string
	// VarFile, when set, is passed to plan, apply, and destroy.
	VarFile string

	Stdout io.Writer
	Stderr io.Writer
}

func NewTerraform(bin, dir, varFile string) *Terraform {
	return &Terraform{Bin: bin, Dir: dir, VarFile: varFile}
}

// Init prepares the working directory: providers, modules, backend.
func (t *Terraform) Init(ctx context.Context) error {
	return t.run(ctx, "init", "-input=false")
}

func (t *Terraform) Plan(ctx context.Context) error {
	return t.run(ctx, t.withVarFile("plan", "-input=false")...)
}

// Apply runs non-interactively; the bootstrap confirmation happens before
// any tool is invoked.
func (t *Terraform) Apply(ctx context.Context) error {
	return t.run(ctx, t.withVarFile("apply", "-input=false", "-auto-approve")...)
}

func (t *Terraform) Destroy(ctx context.Context) error {
	return t.run(ctx, t.withVarFile("destroy", "-input=false", "-auto-approve")...)
}

// Validate checks configuration syntax and internal consistency. It needs
// an initialized directory, but not a reachable backend; callers pair it
// with an init that skips backend setup.
func (t *Terraform) Validate(ctx context.Context) error {
	return t.run(ctx, "validate")
}

// InitLocal is Init without backend configuration, for check runs that
// must not touch remote state.
func (t *Terraform) InitLocal(ctx context.Context) error {
	return t.run(ctx, "init", "-input=false", "-backend=false")
}

func (t *Terraform) withVarFile(args ...string) []string {
	if t.VarFile != "" {
		args = append(args, "-var-file="+t.VarFile)
	}
	return args
}

func (t *Terraform) run(ctx context.Context, args ...string) error {
	return run(ctx, defaultWriter(t.Stdout, os.Stdout), defaultWriter(t.Stderr, os.Stderr), t.Dir, t.Bin, args...)
}
