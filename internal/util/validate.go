package util

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

//nolint:gochecknoglobals // validator caches struct metadata, one instance is enough
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidateConfig checks a config struct against its `validate` tags.
func ValidateConfig(cfg any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config %T: %w", cfg, err)
	}
	return nil
}
