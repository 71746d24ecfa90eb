// Package validator provides per-setting configuration checks. Every failure
// is an *errors.ConfigError naming the offending setting.
package validator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jittakal/kafobjectsink/internal/errors"
)

// MaxPrefixLength is the longest accepted object key prefix.
const MaxPrefixLength = 1024

// ReservedPrefix may not start an object key prefix.
const ReservedPrefix = ".well-known/acme-challenge"

// Prefix validates an object key prefix.
func Prefix(setting, prefix string) error {
	if len(prefix) > MaxPrefixLength {
		return &errors.ConfigError{
			Setting: setting,
			Value:   prefix,
			Reason:  fmt.Sprintf("cannot be longer than %d characters", MaxPrefixLength),
		}
	}
	if strings.HasPrefix(prefix, ReservedPrefix) {
		return &errors.ConfigError{
			Setting: setting,
			Value:   prefix,
			Reason:  fmt.Sprintf("cannot start with '%s'", ReservedPrefix),
		}
	}
	return nil
}

// Required rejects an empty or blank value.
func Required(setting, value string) error {
	if strings.TrimSpace(value) == "" {
		return &errors.ConfigError{Setting: setting, Value: value, Reason: "is required"}
	}
	return nil
}

// RequiredList rejects an empty list.
func RequiredList(setting string, values []string) error {
	if len(values) == 0 {
		return &errors.ConfigError{Setting: setting, Value: values, Reason: "must contain at least one entry"}
	}
	return nil
}

// NonNegative rejects values below zero.
func NonNegative(setting string, n int) error {
	if n < 0 {
		return &errors.ConfigError{Setting: setting, Value: n, Reason: "must be a non-negative integer"}
	}
	return nil
}

// Port rejects values outside 1..65535.
func Port(setting string, port int) error {
	if port < 1 || port > 65535 {
		return &errors.ConfigError{Setting: setting, Value: port, Reason: "must be between 1 and 65535"}
	}
	return nil
}

// OneOf rejects values not in allowed.
func OneOf(setting, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return &errors.ConfigError{
			Setting: setting,
			Value:   value,
			Reason:  fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")),
		}
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
