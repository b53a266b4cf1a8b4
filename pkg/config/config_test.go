package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ManifestFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"STACKBOOT_REPO", "STACKBOOT_REF", "STACKBOOT_ENVIRONMENT",
		"STACKBOOT_WORKDIR", "STACKBOOT_HOST",
		"STACKBOOT_AUTH_TOKEN", "GITHUB_TOKEN",
	} {
		t.Setenv(v, "")
	}
}

func TestLoadFromManifest(t *testing.T) {
	clearEnv(t)
	path := writeManifest(t, `
[project]
name = "core"
repo = "org/infra"
ref = "v1.2.3"

[environments.staging]
var_file = "envs/staging.tfvars"
playbook = "ansible/site.yml"
inventory = "ansible/staging.ini"
`)

	cfg, err := Load(Overrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Repo != "org/infra" {
		t.Errorf("Repo = %q", cfg.Repo)
	}
	if cfg.Ref != "v1.2.3" {
		t.Errorf("Ref = %q", cfg.Ref)
	}
	if cfg.WorkDir != DefaultWorkDir {
		t.Errorf("WorkDir = %q, want default %q", cfg.WorkDir, DefaultWorkDir)
	}
	if len(cfg.Environments) != 1 {
		t.Fatalf("Environments = %v", cfg.Environments)
	}
	if cfg.Environments["staging"].VarFile != "envs/staging.tfvars" {
		t.Errorf("staging VarFile = %q", cfg.Environments["staging"].VarFile)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeManifest(t, `
[project]
repo = "org/infra"
ref = "from-file"
`)

	// Environment beats the file.
	t.Setenv("STACKBOOT_REF", "from-env")
	cfg, err := Load(Overrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Ref != "from-env" {
		t.Errorf("Ref = %q, want env value", cfg.Ref)
	}

	// Flags beat the environment.
	cfg, err = Load(Overrides{ConfigFile: path, Ref: "from-flag"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Ref != "from-flag" {
		t.Errorf("Ref = %q, want flag value", cfg.Ref)
	}
}

func TestLoadEnvironmentSelection(t *testing.T) {
	clearEnv(t)
	path := writeManifest(t, `
[project]
repo = "org/infra"
ref = "v1"

[environments.prod]
var_file = "envs/prod.tfvars"
`)

	cfg, err := Load(Overrides{ConfigFile: path, Environment: "prod"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Env.VarFile != "envs/prod.tfvars" {
		t.Errorf("Env.VarFile = %q", cfg.Env.VarFile)
	}
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)

	tests := map[string]struct {
		manifest  string
		overrides Overrides
		wantField string
	}{
		"missing repo": {
			manifest:  "[project]\nref = \"v1\"\n",
			wantField: "repo",
		},
		"malformed repo": {
			manifest:  "[project]\nrepo = \"just-a-name\"\nref = \"v1\"\n",
			wantField: "repo",
		},
		"missing ref": {
			manifest:  "[project]\nrepo = \"org/infra\"\n",
			wantField: "ref",
		},
		"unknown environment": {
			manifest:  "[project]\nrepo = \"org/infra\"\nref = \"v1\"\n",
			overrides: Overrides{Environment: "nope"},
			wantField: "environment",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			o := tc.overrides
			o.ConfigFile = writeManifest(t, tc.manifest)

			_, err := Load(o)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Load() error = %v, want *ValidationError", err)
			}
			if verr.Field != tc.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tc.wantField)
			}
		})
	}
}

func TestLoadMissingDefaultManifest(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("STACKBOOT_REPO", "org/infra")
	t.Setenv("STACKBOOT_REF", "v9")

	cfg, err := Load(Overrides{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Repo != "org/infra" || cfg.Ref != "v9" {
		t.Errorf("cfg = %+v, want env-provided repo and ref", cfg)
	}
}

func TestLoadExplicitManifestMustExist(t *testing.T) {
	clearEnv(t)
	if _, err := Load(Overrides{ConfigFile: filepath.Join(t.TempDir(), "nope.toml")}); err == nil {
		t.Error("Load() succeeded with a missing explicit manifest")
	}
}

func TestAuthTokenFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeManifest(t, "[project]\nrepo = \"org/infra\"\nref = \"v1\"\n")

	t.Setenv("GITHUB_TOKEN", "gh-token")
	cfg, err := Load(Overrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AuthToken != "gh-token" {
		t.Errorf("AuthToken = %q, want GITHUB_TOKEN fallback", cfg.AuthToken)
	}

	t.Setenv("STACKBOOT_AUTH_TOKEN", "sb-token")
	cfg, err = Load(Overrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AuthToken != "sb-token" {
		t.Errorf("AuthToken = %q, want STACKBOOT_AUTH_TOKEN to win", cfg.AuthToken)
	}
}

func TestInitManifest(t *testing.T) {
	dir := t.TempDir()

	if err := InitManifest(dir, "myproj"); err != nil {
		t.Fatalf("InitManifest() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestFileName)); err != nil {
		t.Fatalf("manifest not created: %v", err)
	}

	if err := InitManifest(dir, "myproj"); err == nil {
		t.Error("InitManifest() succeeded over an existing manifest")
	}
}

func TestEnsureGitignore(t *testing.T) {
	dir := t.TempDir()

	added, err := EnsureGitignore(dir, []string{".stackboot/"})
	if err != nil {
		t.Fatalf("EnsureGitignore() error: %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("added = %v, want one entry", added)
	}

	added, err = EnsureGitignore(dir, []string{".stackboot/"})
	if err != nil {
		t.Fatalf("EnsureGitignore() error: %v", err)
	}
	if len(added) != 0 {
		t.Errorf("added = %v, want none on second run", added)
	}
}

func TestLockFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFileName)

	want := &LockFile{
		Version:          1,
		Repo:             "org/infra",
		Ref:              "v1.2.3",
		Root:             "/work/proj-1.2.3",
		Integrity:        "sha256:abc",
		ChecksumVerified: true,
		FetchedAt:        "2026-08-23T10:00:00Z",
	}
	if err := SaveLockFile(path, want); err != nil {
		t.Fatalf("SaveLockFile() error: %v", err)
	}

	got, err := LoadLockFile(path)
	if err != nil {
		t.Fatalf("LoadLockFile() error: %v", err)
	}
	if *got != *want {
		t.Errorf("LoadLockFile() = %+v, want %+v", got, want)
	}
}

func TestLoadLockFileMissing(t *testing.T) {
	lf, err := LoadLockFile(filepath.Join(t.TempDir(), LockFileName))
	if err != nil {
		t.Fatalf("LoadLockFile() error: %v", err)
	}
	if lf.Version != 1 || lf.Repo != "" {
		t.Errorf("LoadLockFile() = %+v, want empty receipt", lf)
	}
}
