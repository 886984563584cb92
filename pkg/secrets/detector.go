package secrets

import (
	"fmt"
	"regexp"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding is one detected secret.
type Finding struct {
	RuleID   string // Gitleaks rule ID (e.g., "github-pat")
	RuleDesc string
	Line     int
	Match    string // the secret value; never logged or stored
}

// defaultConfig loads the Gitleaks default rule set with allowlist merged in.
func defaultConfig(allowlist *Allowlist) (gitleaksConfig.Config, error) {
	base, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return gitleaksConfig.Config{}, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	cfg := base.Config
	if allowlist != nil && len(allowlist.Regexes) > 0 {
		if err := applyAllowlist(&cfg, allowlist); err != nil {
			return gitleaksConfig.Config{}, err
		}
	}
	return cfg, nil
}

// detectWith scans content with a fresh detector. Gitleaks detectors
// accumulate findings across calls, so one is built per scan.
func detectWith(cfg gitleaksConfig.Config, content string) []Finding {
	detector := detect.NewDetector(cfg)
	found := detector.DetectString(content)

	result := make([]Finding, 0, len(found))
	for _, f := range found {
		if f.Secret == "" {
			continue
		}
		result = append(result, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Line:     f.StartLine,
			Match:    f.Secret,
		})
	}
	return result
}

// applyAllowlist adds allowlist patterns to the Gitleaks config as a
// global allowlist.
func applyAllowlist(cfg *gitleaksConfig.Config, allowlist *Allowlist) error {
	global := &gitleaksConfig.Allowlist{
		Description: "ragbrain allowlist",
	}
	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRegex, pattern, err)
		}
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, allowlist.Regexes...)
	cfg.Allowlists = append(cfg.Allowlists, global)
	return nil
}
