package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Load reads a config file, merges it over DefaultHubConfig and returns the
// result. The format is chosen by file extension.
func Load(filename string) (HubConfig, error) {
	cfg := DefaultHubConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	loaded, err := Decode(filepath.Ext(filename), data)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	cfg.Merge(&loaded)
	return cfg, nil
}

// Decode parses raw config data in the format named by ext (".json",
// ".toml", ".yaml" or ".yml").
func Decode(ext string, data []byte) (HubConfig, error) {
	var loaded HubConfig

	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&loaded); err != nil {
			return HubConfig{}, err
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &loaded)
		if err != nil {
			return HubConfig{}, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return HubConfig{}, fmt.Errorf("unknown keys: %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&loaded); err != nil && !errors.Is(err, io.EOF) {
			return HubConfig{}, err
		}
	default:
		return HubConfig{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	return loaded, nil
}
