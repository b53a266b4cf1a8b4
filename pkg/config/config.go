// Package config resolves the bootstrap configuration: CLI flags over
// STACKBOOT_* environment variables over the stackboot.toml manifest.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultWorkDir is used when no work directory is configured.
const DefaultWorkDir = ".stackboot"

// ValidationError reports a missing or malformed configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Config is the resolved, immutable run configuration. It is built once
// before a run and passed into each component; nothing reads configuration
// globals afterwards.
type Config struct {
	Repo        string
	Ref         string
	Environment string
	WorkDir     string
	Host        string
	// AuthToken comes only from the environment (STACKBOOT_AUTH_TOKEN,
	// falling back to GITHUB_TOKEN), never from the manifest.
	AuthToken string

	// Env is the variant selected by Environment; zero when none is named.
	Env          Environment
	Environments map[string]Environment
}

// Overrides carries CLI flag values into Load. Empty fields are unset.
type Overrides struct {
	ConfigFile  string
	Repo        string
	Ref         string
	Environment string
	WorkDir     string
}

// Load resolves configuration with Viper precedence: flag overrides >
// environment variables > manifest file. A manifest named explicitly via
// Overrides.ConfigFile must exist; the default stackboot.toml is optional.
func Load(o Overrides) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	configFile := o.ConfigFile
	if configFile == "" {
		configFile = ManifestFileName
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		if o.ConfigFile != "" || !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", configFile, err)
		}
	}

	v.SetDefault("project.workdir", DefaultWorkDir)

	bindings := map[string]string{
		"project.repo":    "STACKBOOT_REPO",
		"project.ref":     "STACKBOOT_REF",
		"project.workdir": "STACKBOOT_WORKDIR",
		"project.host":    "STACKBOOT_HOST",
		"environment":     "STACKBOOT_ENVIRONMENT",
	}
	for key, envVar := range bindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("binding %s: %w", envVar, err)
		}
	}

	// Highest priority: CLI flags.
	if o.Repo != "" {
		v.Set("project.repo", o.Repo)
	}
	if o.Ref != "" {
		v.Set("project.ref", o.Ref)
	}
	if o.Environment != "" {
		v.Set("environment", o.Environment)
	}
	if o.WorkDir != "" {
		v.Set("project.workdir", o.WorkDir)
	}

	// Environment variants only ever come from the manifest file; the
	// scalar settings go through Get so env bindings take effect.
	var envs map[string]Environment
	if err := v.UnmarshalKey("environments", &envs); err != nil {
		return nil, fmt.Errorf("unmarshaling environments: %w", err)
	}

	cfg := &Config{
		Repo:         v.GetString("project.repo"),
		Ref:          v.GetString("project.ref"),
		Environment:  v.GetString("environment"),
		WorkDir:      v.GetString("project.workdir"),
		Host:         v.GetString("project.host"),
		AuthToken:    tokenFromEnv(),
		Environments: envs,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Environment != "" {
		cfg.Env = cfg.Environments[cfg.Environment]
	}

	return cfg, nil
}

func (c *Config) validate() error {
	parts := strings.Split(c.Repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return &ValidationError{Field: "repo", Reason: fmt.Sprintf("%q must be owner/name", c.Repo)}
	}
	if c.Ref == "" {
		return &ValidationError{Field: "ref", Reason: "a tag or commit SHA is required"}
	}
	if c.Environment != "" {
		if _, ok := c.Environments[c.Environment]; !ok {
			return &ValidationError{Field: "environment", Reason: fmt.Sprintf("%q is not declared in %s", c.Environment, ManifestFileName)}
		}
	}
	return nil
}

func tokenFromEnv() string {
	if tok := strings.TrimSpace(os.Getenv("STACKBOOT_AUTH_TOKEN")); tok != "" {
		return tok
	}
	return strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
}
