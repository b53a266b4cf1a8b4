package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// LockFileName is the run receipt written into the work directory after a
// successful fetch. It records what was actually resolved, so a later run
// (or a human) can see which bundle the infrastructure was built from.
const LockFileName = "stackboot.lock.toml"

type LockFile struct {
	Version          int    `toml:"version"`
	Repo             string `toml:"repo"`
	Ref              string `toml:"ref"`
	Root             string `toml:"root"`
	Integrity        string `toml:"integrity"`
	ChecksumVerified bool   `toml:"checksum_verified"`
	FetchedAt        string `toml:"fetched_at"`
}

// LoadLockFile reads a lock receipt. A missing file yields an empty
// receipt, not an error.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LockFile{Version: 1}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	lf := &LockFile{}
	if err := toml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return lf, nil
}

func SaveLockFile(path string, lf *LockFile) error {
	data, err := toml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock receipt: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
