package config

import (
	"github.com/spf13/viper"
)

// SettingsProvider resolves dotted setting paths.
type SettingsProvider interface {
	// Setting returns the value at path and whether the path exists.
	Setting(path string) (interface{}, bool)
}

// Settings is a SettingsProvider backed by viper.
type Settings struct {
	v      *viper.Viper
	prefix string
}

// NewSettings builds settings from a nested map.
func NewSettings(values map[string]interface{}) *Settings {
	v := viper.New()
	if values != nil {
		_ = v.MergeConfigMap(values)
	}
	return &Settings{v: v}
}

// Setting implements SettingsProvider.
func (s *Settings) Setting(path string) (interface{}, bool) {
	key := path
	if s.prefix != "" {
		key = s.prefix + "." + path
	}
	if !s.v.IsSet(key) {
		return nil, false
	}
	return s.v.Get(key), true
}
