package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/adrg/xdg"

	"github.com/kennep/killjoy/errors"
)

// settingsRelPath is the settings file location relative to an XDG config
// directory.
const settingsRelPath = "killjoy/settings.json"

// Parse decodes and validates a settings document.
func Parse(data []byte) (*Settings, error) {
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapInvalid(err, "Settings", "Parse", "decode settings JSON")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and validates the settings file at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapFatal(
				fmt.Errorf("%w: %s", errors.ErrConfigNotFound, path),
				"Settings", "Load", "read settings file")
		}
		return nil, errors.WrapFatal(err, "Settings", "Load", "read settings file")
	}
	return Parse(data)
}

// SearchPath locates the settings file in the XDG config directories
// ($XDG_CONFIG_HOME first, then $XDG_CONFIG_DIRS).
func SearchPath() (string, error) {
	path, err := xdg.SearchConfigFile(settingsRelPath)
	if err != nil {
		return "", errors.WrapFatal(
			fmt.Errorf("%w: %s not found in XDG config directories", errors.ErrConfigNotFound, settingsRelPath),
			"Settings", "SearchPath", "locate settings file")
	}
	return path, nil
}

// LoadDefault locates the settings file via SearchPath and loads it.
func LoadDefault() (*Settings, error) {
	path, err := SearchPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}
