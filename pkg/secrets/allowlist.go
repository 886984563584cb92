package secrets

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Allowlist holds content patterns excluded from detection.
type Allowlist struct {
	Regexes []string
}

// LoadAllowlists loads and merges allowlist files. Empty paths and missing
// files are skipped. Invalid TOML or regex patterns return errors.
//
// File format:
//
//	[allowlist]
//	regexes = ["EXAMPLE_KEY_[0-9]+"]
func LoadAllowlists(paths ...string) (*Allowlist, error) {
	merged := &Allowlist{Regexes: []string{}}
	for _, path := range paths {
		if path == "" {
			continue
		}
		list, err := loadTOML(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		merged.Regexes = append(merged.Regexes, list.Regexes...)
	}
	return merged, nil
}

func loadTOML(path string) (*Allowlist, error) {
	var config struct {
		Allowlist struct {
			Regexes []string
		}
	}

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}
	for _, pattern := range config.Allowlist.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("%w: invalid content pattern '%s' in %s: %v",
				ErrInvalidRegex, pattern, path, err)
		}
	}
	return &Allowlist{Regexes: config.Allowlist.Regexes}, nil
}
