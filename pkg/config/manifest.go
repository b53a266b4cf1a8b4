package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the project manifest read from the directory
// stackboot is invoked in.
const ManifestFileName = "stackboot.toml"

// Manifest is the on-disk shape of stackboot.toml.
type Manifest struct {
	Project      ProjectConfig          `toml:"project" mapstructure:"project"`
	Environments map[string]Environment `toml:"environments,omitempty" mapstructure:"environments"`
}

type ProjectConfig struct {
	Name string `toml:"name,omitempty" mapstructure:"name"`
	// Repo is the infrastructure repository to bootstrap, "owner/name".
	Repo string `toml:"repo,omitempty" mapstructure:"repo"`
	// Ref is the tag or commit SHA to fetch.
	Ref string `toml:"ref,omitempty" mapstructure:"ref"`
	// WorkDir receives the downloaded archive and extracted tree.
	WorkDir string `toml:"workdir,omitempty" mapstructure:"workdir"`
	// Host overrides the archive host base URL.
	Host string `toml:"host,omitempty" mapstructure:"host"`
}

// Environment is one configuration variant selectable with --env. Paths
// are relative to the extracted bundle root.
type Environment struct {
	VarFile   string `toml:"var_file,omitempty" mapstructure:"var_file"`
	Inventory string `toml:"inventory,omitempty" mapstructure:"inventory"`
	Playbook  string `toml:"playbook,omitempty" mapstructure:"playbook"`
}

// InitManifest creates a starter stackboot.toml in dir with the given
// project name. Returns an error if the manifest already exists.
func InitManifest(dir, name string) error {
	path := filepath.Join(dir, ManifestFileName)

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", ManifestFileName)
	}

	m := &Manifest{
		Project:      ProjectConfig{Name: name},
		Environments: map[string]Environment{},
	}

	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// InferName derives a project name from the given directory path.
func InferName(dir string) string {
	return filepath.Base(dir)
}

// EnsureGitignore ensures that each entry appears somewhere in the
// .gitignore file within dir. Only entries not already present are
// appended. Returns the list of entries that were actually added.
func EnsureGitignore(dir string, entries []string) ([]string, error) {
	path := filepath.Join(dir, ".gitignore")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var toAdd []string
	for _, entry := range entries {
		if !present[entry] {
			toAdd = append(toAdd, entry)
		}
	}

	if len(toAdd) == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	// Ensure we start on a new line if file doesn't end with one.
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return nil, err
		}
	}

	for _, entry := range toAdd {
		if _, err := f.WriteString(entry + "\n"); err != nil {
			return nil, err
		}
	}

	return toAdd, nil
}
