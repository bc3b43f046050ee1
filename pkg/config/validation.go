package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/regionstore/pkg/region"
	"github.com/marmos91/regionstore/pkg/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags, then the rules that span sections.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	switch cfg.Storage.Backend {
	case store.BackendRegion:
		if _, err := cfg.Storage.RegionOptions(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	case store.BackendBadger:
		if cfg.Badger.Path == "" && !cfg.Badger.InMemory {
			return errors.New("badger: path is required unless in_memory is set")
		}
	}
	return nil
}

// RegionOptions converts the storage section to region.Options and checks
// that the layout can be represented on disk.
func (c StorageConfig) RegionOptions() (region.Options, error) {
	scheme, err := region.ParseScheme(c.Compression)
	if err != nil {
		return region.Options{}, err
	}
	opts := region.Options{
		RegionSize:  c.RegionSize,
		SectorSize:  c.SectorSize.Int(),
		Compression: scheme,
		SyncWrites:  c.SyncWrites,
		Extension:   c.Extension,
	}.WithDefaults()

	if err := opts.Validate(); err != nil {
		return region.Options{}, err
	}
	return opts, nil
}
