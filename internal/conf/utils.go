// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"

	"github.com/MLAB-project/pysdr/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// If config.yaml exists in one of them, only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	configPaths := []string{
		".",
		filepath.Join(homeDir, ".config", "pysdr"),
		"/etc/pysdr",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}
