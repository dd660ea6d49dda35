package config

import "errors"

var (
	// ErrInvalidConfig is returned when a loaded configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigFile is returned when the configuration file cannot be read.
	ErrConfigFile = errors.New("config file unreadable")
)
