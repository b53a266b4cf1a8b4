// Package bundle reads the optional bootstrap.yaml manifest at the root of
// a fetched infrastructure bundle. The manifest declares where the
// terraform configuration lives and which ansible playbook and inventory
// apply the configuration pass; environment variants from stackboot.toml
// override it.
package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// ManifestName is looked up at the extracted bundle root.
const ManifestName = "bootstrap.yaml"

type Manifest struct {
	Name          string   `json:"name,omitempty"`
	TerraformDir  string   `json:"terraform_dir,omitempty"`
	Playbook      string   `json:"playbook,omitempty"`
	Inventory     string   `json:"inventory,omitempty"`
	RequiredTools []string `json:"required_tools,omitempty"`
}

// Load reads the bundle manifest from dir. A missing bootstrap.yaml is not
// an error: defaults apply (terraform configuration at the bundle root, no
// configuration pass).
func Load(dir string) (*Manifest, error) {
	m := &Manifest{}

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			m.TerraformDir = "."
			return m, nil
		}
		return nil, fmt.Errorf("reading %s in %q: %w", ManifestName, dir, err)
	}

	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s in %q: %w", ManifestName, dir, err)
	}

	if m.TerraformDir == "" {
		m.TerraformDir = "."
	}
	return m, nil
}

// Validate makes sure manifest paths stay inside the bundle.
func (m *Manifest) Validate() error {
	var err error
	for field, value := range map[string]string{
		"terraform_dir": m.TerraformDir,
		"playbook":      m.Playbook,
		"inventory":     m.Inventory,
	} {
		if value == "" {
			continue
		}
		if filepath.IsAbs(value) {
			err = errors.Join(err, fmt.Errorf("%s must be relative to the bundle root, got %q", field, value))
		}
		if rel := filepath.Clean(value); rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			err = errors.Join(err, fmt.Errorf("%s must not escape the bundle root, got %q", field, value))
		}
	}
	return err
}
