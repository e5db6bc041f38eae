// Package preflight checks the resolved configuration before any browser is
// launched, so a bad profile fails in milliseconds instead of after a run.
package preflight

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"onlytests-e2e/internal/config"
)

// RequiredVars lists the variables the active profile must define.
func RequiredVars(env string) []string {
	prefix := strings.ToUpper(env)
	return []string{prefix + "_BASE_URL", prefix + "_API_URL"}
}

// ValidateEnvironment fails when a required variable is missing.
func ValidateEnvironment(s *config.Store) error {
	log := s.Logger()
	log.Info("Validating environment configuration...")

	v := viper.New()
	v.AutomaticEnv()

	var missing []string
	for _, name := range RequiredVars(s.Environment()) {
		if v.GetString(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		err := &config.ConfigurationError{
			Op:  "environment check",
			Err: fmt.Errorf("Missing required environment variables: %s", strings.Join(missing, ", ")),
		}
		log.Error(err.Err.Error())
		return err
	}

	log.Info("Environment configuration validation passed")
	return nil
}

// ValidateConfiguration re-checks the value ranges of the live configuration,
// which may have been changed by Update since it was loaded.
func ValidateConfiguration(s *config.Store) error {
	log := s.Logger()
	log.Info("Validating configuration values...")

	if err := config.Validate(s.Config()); err != nil {
		log.Error("Configuration values validation failed", loggerErr(err))
		return &config.ConfigurationError{Op: "range check", Err: err}
	}

	log.Info("Configuration values validation passed")
	return nil
}

// ValidateSecurity never fails. It returns the warnings it logged.
func ValidateSecurity(s *config.Store) []string {
	log := s.Logger()
	log.Info("Validating security configuration...")

	var warnings []string
	if s.IsProduction() && strings.HasPrefix(s.BaseURL(), "http://") {
		w := "Using HTTP in production environment. Consider using HTTPS."
		log.SecurityWarning(w)
		warnings = append(warnings, w)
	}

	log.Info("Security configuration validation passed")
	return warnings
}

// ValidateAll runs the environment, range and security checks in order and
// stops at the first hard failure.
func ValidateAll(s *config.Store) error {
	if err := ValidateEnvironment(s); err != nil {
		s.Logger().Error("Configuration validation failed", loggerErr(err))
		return err
	}
	if err := ValidateConfiguration(s); err != nil {
		s.Logger().Error("Configuration validation failed", loggerErr(err))
		return err
	}
	ValidateSecurity(s)

	s.Logger().Info("All configuration validations passed successfully")
	return nil
}
