package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type NicheConfig struct {
	Name string `yaml:"name"`
}

type NichesConfig struct {
	Niches []NicheConfig `yaml:"niches"`
}

// LoadNiches reads the marketplace niche catalog. Registrations and updates
// validate their category against this list; an absent file disables the
// validation rather than failing startup.
func LoadNiches(nichesFile string) ([]string, error) {
	var nichesPath string
	if filepath.IsAbs(nichesFile) {
		nichesPath = nichesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		nichesPath = filepath.Join(wd, nichesFile)
	}

	data, err := os.ReadFile(nichesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to read %s: %w", nichesFile, err)
	}

	var config NichesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", nichesFile, err)
	}

	niches := make([]string, 0, len(config.Niches))
	for i, n := range config.Niches {
		if n.Name == "" {
			return nil, fmt.Errorf("niche at index %d missing name", i)
		}
		niches = append(niches, n.Name)
	}
	return niches, nil
}
