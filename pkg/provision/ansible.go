package provision

import (
	"context"
	"io"
	"os"
)

// Ansible runs the configuration manager from the bundle root.
type Ansible struct {
	Bin string
	Dir string

	Stdout io.Writer
	Stderr io.Writer
}

func NewAnsible(bin, dir string) *Ansible {
	return &Ansible{Bin: bin, Dir: dir}
}

// Run applies playbook over inventory. Both paths are relative to Dir.
// An empty inventory falls back to whatever the ansible configuration in
// the bundle declares.
func (a *Ansible) Run(ctx context.Context, playbook, inventory string) error {
	args := []string{}
	if inventory != "" {
		args = append(args, "-i", inventory)
	}
	args = append(args, playbook)
	return run(ctx, defaultWriter(a.Stdout, os.Stdout), defaultWriter(a.Stderr, os.Stderr), a.Dir, a.Bin, args...)
}
