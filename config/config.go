// Package config reads the clearing configuration from a yaml (or json, or
// toml) file and CLEARPART_ prefixed environment variables.
package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"machinerun.io/clearpart"
)

const (
	// DefaultName is the configuration file name searched for in Dirs.
	DefaultName = "clearpart"

	// DefaultEnvPrefix is the environment variable prefix.
	DefaultEnvPrefix = "CLEARPART"
)

// Keys of the configuration.
const (
	KeyClearPartType     = "clear-part-type"
	KeyClearPartDisks    = "clear-part-disks"
	KeyClearPartDevices  = "clear-part-devices"
	KeyInitializeDisks   = "initialize-disks"
	KeyZeroMBR           = "zero-mbr"
	KeyClearNonExistent  = "clear-non-existent"
	KeyProtectedDevSpecs = "protected-devices"
)

// DefaultDirs are searched for the configuration file when no file is given.
//
//nolint:gochecknoglobals
var DefaultDirs = []string{"/etc/clearpart", "."}

// Source is a clearpart.Source backed by viper. The file and the environment
// are read again on every call to Config, so a new reset sees changes.
type Source struct {
	// File is the configuration file. When empty Name is searched for in
	// Dirs, and a missing file is not an error.
	File string
	Name string
	Dirs []string

	// EnvPrefix is the prefix of the environment variables, e.g.
	// CLEARPART_CLEAR_PART_TYPE=all.
	EnvPrefix string

	// Overrides win over the file and the environment. Command line flags
	// end up here.
	Overrides map[string]interface{}
}

// New returns a Source reading file, or searching the default directories
// if file is "".
func New(file string) *Source {
	return &Source{
		File:      file,
		Name:      DefaultName,
		Dirs:      DefaultDirs,
		EnvPrefix: DefaultEnvPrefix,
		Overrides: map[string]interface{}{},
	}
}

// Set adds an override.
func (s *Source) Set(key string, value interface{}) {
	if s.Overrides == nil {
		s.Overrides = map[string]interface{}{}
	}

	s.Overrides[key] = value
}

// Config implements clearpart.Source.
func (s *Source) Config() (clearpart.Config, error) {
	cfg := clearpart.DefaultConfig()
	v := viper.New()

	v.SetDefault(KeyClearPartType, cfg.ClearPartType.String())
	v.SetDefault(KeyClearPartDisks, []string{})
	v.SetDefault(KeyClearPartDevices, []string{})
	v.SetDefault(KeyInitializeDisks, cfg.InitializeDisks)
	v.SetDefault(KeyZeroMBR, cfg.ZeroMBR)
	v.SetDefault(KeyClearNonExistent, cfg.ClearNonExistent)
	v.SetDefault(KeyProtectedDevSpecs, []string{})

	if s.File != "" {
		v.SetConfigFile(s.File)
	} else {
		name := s.Name
		if name == "" {
			name = DefaultName
		}

		v.SetConfigName(name)

		for _, d := range s.Dirs {
			v.AddConfigPath(d)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if s.File != "" || !errors.As(err, &notFound) {
			return cfg, errors.Wrap(err, "failed to read clearpart configuration")
		}
	}

	prefix := s.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for k, val := range s.Overrides {
		v.Set(k, val)
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		clearTypeHook,
		mapstructure.StringToSliceHookFunc(","),
	))

	if err := v.Unmarshal(&cfg, hook); err != nil {
		return cfg, errors.Wrap(err, "invalid clearpart configuration")
	}

	cfg.ClearPartDisks = compact(cfg.ClearPartDisks)
	cfg.ClearPartDevices = compact(cfg.ClearPartDevices)
	cfg.ProtectedDevSpecs = compact(cfg.ProtectedDevSpecs)

	return cfg, nil
}

//nolint:gochecknoglobals
var clearTypeType = reflect.TypeOf(clearpart.ClearType(0))

// clearTypeHook decodes clear type names.
func clearTypeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != clearTypeType || from.Kind() != reflect.String {
		return data, nil
	}

	return clearpart.ParseClearType(reflect.ValueOf(data).String())
}

// compact trims the entries of a list and drops the empty ones.
func compact(list []string) []string {
	out := []string{}

	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}
