package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"onlytests-e2e/internal/browser"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the accepted ranges of cfg: timeout 1s to 300s, retries 0
// to 10, workers 1 to 10, absolute http(s) URLs and a known driver.
func Validate(cfg EnvironmentConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.StructField() {
	case "BaseURL":
		return fmt.Sprintf("Base URL must be a valid URL starting with http, got: %q", fe.Value())
	case "APIURL":
		return fmt.Sprintf("API URL must be a valid URL starting with http, got: %q", fe.Value())
	case "Timeout":
		d, _ := fe.Value().(time.Duration)
		return fmt.Sprintf("Timeout must be between 1000ms and 300000ms, got: %d", d.Milliseconds())
	case "Retries":
		return fmt.Sprintf("Retries must be between 0 and 10, got: %v", fe.Value())
	case "Workers":
		return fmt.Sprintf("Workers must be between 1 and 10, got: %v", fe.Value())
	case "Driver":
		return fmt.Sprintf("Driver must be one of %s, %s, %s, got: %q", browser.DriverPlaywright, browser.DriverChromedp, browser.DriverRod, fe.Value())
	case "SlowMo":
		d, _ := fe.Value().(time.Duration)
		return fmt.Sprintf("SlowMo must not be negative, got: %d", d.Milliseconds())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}
