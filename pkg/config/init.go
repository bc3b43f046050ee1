package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by InitConfig when the file exists and force
// is not set.
var ErrConfigExists = errors.New("configuration file already exists")

const configHeader = `# regionstore configuration file
#
# Every key can be overridden with an environment variable named
# REGIONSTORE_<SECTION>_<KEY>, e.g. REGIONSTORE_STORAGE_PATH.
#
# storage.backend selects where chunk payloads live:
#   region  region files under storage.path (default)
#   badger  a BadgerDB database under badger.path
#   memory  nothing is persisted
`

// InitConfig writes a default configuration file to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a default configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
		}
	}

	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader+"\n"), data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
