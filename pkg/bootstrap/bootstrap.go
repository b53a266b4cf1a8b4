// Package bootstrap sequences one provisioning run: lock the work
// directory, fetch and extract the bundle, then drive the provisioning
// tool and, on apply, the configuration manager from the extracted tree.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/stackboot/stackboot/pkg/bundle"
	"github.com/stackboot/stackboot/pkg/config"
	"github.com/stackboot/stackboot/pkg/fetch"
	"github.com/stackboot/stackboot/pkg/prereq"
	"github.com/stackboot/stackboot/pkg/ui"
	"github.com/stackboot/stackboot/pkg/workdir"
)

// Mode selects which provisioning operation a run performs.
type Mode string

const (
	ModePlan    Mode = "plan"
	ModeApply   Mode = "apply"
	ModeDestroy Mode = "destroy"
	ModeCheck   Mode = "check"
)

// ParseMode validates a mode name, e.g. from the STACKBOOT_MODE variable.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePlan, ModeApply, ModeDestroy, ModeCheck:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q: must be plan, apply, destroy, or check", s)
}

// Fetcher retrieves, verifies, and extracts a bundle.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error)
}

// ProvisioningTool is the terraform-shaped collaborator driven by a run.
type ProvisioningTool interface {
	Init(ctx context.Context) error
	InitLocal(ctx context.Context) error
	Plan(ctx context.Context) error
	Apply(ctx context.Context) error
	Destroy(ctx context.Context) error
	Validate(ctx context.Context) error
}

// ConfigManager is the ansible-shaped collaborator applying configuration
// to provisioned hosts.
type ConfigManager interface {
	Run(ctx context.Context, playbook, inventory string) error
}

// Factories defer tool construction until the bundle root is known, and
// surface missing-binary errors only when a tool is actually needed.
type (
	ProvisionerFactory   func(dir, varFile string) (ProvisioningTool, error)
	ConfigManagerFactory func(dir string) (ConfigManager, error)
)

type Orchestrator struct {
	Fetcher          Fetcher
	NewProvisioner   ProvisionerFactory
	NewConfigManager ConfigManagerFactory
	Work             *workdir.Dir
	Log              *ui.Logger

	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

// Run performs one full bootstrap in the given mode. Any error aborts the
// run immediately; there is no rollback, and the archive and extracted
// tree stay on disk.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.Config, mode Mode) error {
	release, err := o.Work.Acquire()
	if err != nil {
		return err
	}
	defer release()

	res, err := o.fetchBundle(ctx, cfg)
	if err != nil {
		return err
	}

	man, err := bundle.Load(res.RootDir)
	if err != nil {
		return err
	}
	if err := man.Validate(); err != nil {
		return fmt.Errorf("invalid bundle manifest: %w", err)
	}

	for _, tool := range man.RequiredTools {
		if err := prereq.Check(tool); err != nil {
			return err
		}
	}

	varFile := cfg.Env.VarFile
	if varFile != "" {
		// The tool runs inside the terraform directory; anchor the
		// var-file at the bundle root where the environment declared it.
		varFile = filepath.Join(res.RootDir, varFile)
	}

	tf, err := o.NewProvisioner(filepath.Join(res.RootDir, man.TerraformDir), varFile)
	if err != nil {
		return err
	}

	switch mode {
	case ModePlan:
		return o.provision(ctx, tf, mode, tf.Plan)
	case ModeApply:
		if err := o.provision(ctx, tf, mode, tf.Apply); err != nil {
			return err
		}
		return o.configure(ctx, cfg, man, res.RootDir)
	case ModeDestroy:
		return o.provision(ctx, tf, mode, tf.Destroy)
	case ModeCheck:
		o.Log.Infof("validating terraform configuration")
		if err := tf.InitLocal(ctx); err != nil {
			return err
		}
		if err := tf.Validate(ctx); err != nil {
			return err
		}
		o.Log.Okf("configuration is valid")
		return nil
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// FetchOnly downloads and extracts the bundle without provisioning.
func (o *Orchestrator) FetchOnly(ctx context.Context, cfg *config.Config) (*fetch.Result, error) {
	release, err := o.Work.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return o.fetchBundle(ctx, cfg)
}

func (o *Orchestrator) fetchBundle(ctx context.Context, cfg *config.Config) (*fetch.Result, error) {
	o.Log.Infof("fetching %s@%s", cfg.Repo, cfg.Ref)

	res, err := o.Fetcher.Fetch(ctx, fetch.Request{
		Repo:      cfg.Repo,
		Ref:       cfg.Ref,
		AuthToken: cfg.AuthToken,
		DestDir:   o.Work.Root(),
	})
	if err != nil {
		return nil, err
	}

	if res.ChecksumVerified {
		o.Log.Okf("archive checksum verified")
	} else {
		o.Log.Warnf("no checksum file found, skipping archive verification")
	}

	o.removeStaleRoot(res)

	if err := o.writeReceipt(cfg, res); err != nil {
		return nil, err
	}

	o.Log.Okf("bundle extracted to %s", res.RootDir)
	return res, nil
}

// removeStaleRoot drops the tree a previous run extracted when this fetch
// resolved a different root, so old refs do not pile up in the work
// directory. Best effort: a failure here never fails the run.
func (o *Orchestrator) removeStaleRoot(res *fetch.Result) {
	prev, err := config.LoadLockFile(o.Work.Path(config.LockFileName))
	if err != nil || prev.Root == "" || prev.Root == res.RootDir {
		return
	}

	base := filepath.Base(prev.Root)
	if base == filepath.Base(res.RootDir) {
		return
	}
	if ok, err := o.Work.Exists(base); err != nil || !ok {
		return
	}
	o.Log.Infof("removing stale bundle %s", base)
	o.Work.Remove(base)
}

func (o *Orchestrator) writeReceipt(cfg *config.Config, res *fetch.Result) error {
	now := time.Now
	if o.now != nil {
		now = o.now
	}
	lf := &config.LockFile{
		Version:          1,
		Repo:             cfg.Repo,
		Ref:              cfg.Ref,
		Root:             res.RootDir,
		Integrity:        res.Integrity,
		ChecksumVerified: res.ChecksumVerified,
		FetchedAt:        now().UTC().Format(time.RFC3339),
	}
	path := o.Work.Path(config.LockFileName)
	if err := config.SaveLockFile(path, lf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (o *Orchestrator) provision(ctx context.Context, tf ProvisioningTool, mode Mode, op func(context.Context) error) error {
	o.Log.Infof("running terraform init")
	if err := tf.Init(ctx); err != nil {
		return err
	}

	o.Log.Infof("running terraform %s", mode)
	if err := op(ctx); err != nil {
		return err
	}

	o.Log.Okf("terraform %s completed", mode)
	return nil
}

// configure runs the configuration pass after a successful apply. The
// environment variant overrides the bundle manifest; when neither declares
// a playbook there is nothing to configure.
func (o *Orchestrator) configure(ctx context.Context, cfg *config.Config, man *bundle.Manifest, rootDir string) error {
	playbook := cfg.Env.Playbook
	if playbook == "" {
		playbook = man.Playbook
	}
	if playbook == "" {
		return nil
	}

	inventory := cfg.Env.Inventory
	if inventory == "" {
		inventory = man.Inventory
	}

	cm, err := o.NewConfigManager(rootDir)
	if err != nil {
		return err
	}

	o.Log.Infof("running configuration pass: %s", playbook)
	if err := cm.Run(ctx, playbook, inventory); err != nil {
		return err
	}

	o.Log.Okf("configuration pass completed")
	return nil
}
