package doctor

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/errors"
)

// ConfigCheck verifies the config file, if any, loads and validates.
type ConfigCheck struct {
	Path string // Explicit path, or empty to search
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return CategoryConfig }

func (c *ConfigCheck) Run(context.Context) CheckResult {
	path, err := config.Find(c.Path)
	if err != nil {
		return c.failure(err)
	}

	if _, err := config.Load(path); err != nil {
		return c.failure(err)
	}

	if path == "" {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No config file, using defaults",
		}
	}
	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Config file: %s", path),
	}
}

func (c *ConfigCheck) failure(err error) CheckResult {
	result := CheckResult{
		Name:    c.Name(),
		Status:  StatusFail,
		Message: err.Error(),
	}
	var sErr *errors.Error
	if stderrors.As(err, &sErr) {
		result.Message = sErr.Message
		if sErr.Cause != nil && sErr.Cause.Error() != sErr.Message {
			result.Message += ": " + sErr.Cause.Error()
		}
		result.Suggestion = sErr.Suggestion
	}
	return result
}

func (c *ConfigCheck) Fix() error {
	return nil // Config errors need a human
}
