package secrets

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
)

// RedactResult contains redacted content and audit information.
type RedactResult struct {
	Content string
	Audit   AuditLog
}

// Redactor replaces detected secrets with [REDACTED:<rule-id>] markers.
// It is safe for concurrent use.
type Redactor struct {
	config gitleaksConfig.Config
}

// NewRedactor loads the Gitleaks rules once and merges the allowlist files.
func NewRedactor(allowlistPaths ...string) (*Redactor, error) {
	allowlist, err := LoadAllowlists(allowlistPaths...)
	if err != nil {
		return nil, fmt.Errorf("loading allowlists: %w", err)
	}
	cfg, err := defaultConfig(allowlist)
	if err != nil {
		return nil, err
	}
	return &Redactor{config: cfg}, nil
}

// Detect returns the secrets found in content.
func (r *Redactor) Detect(content string) []Finding {
	return detectWith(r.config, content)
}

// Redact returns content with every finding replaced.
func (r *Redactor) Redact(content string) RedactResult {
	start := time.Now()
	if content == "" {
		return RedactResult{Content: content, Audit: buildAuditLog(nil, 0)}
	}
	findings := r.Detect(content)
	audit := buildAuditLog(findings, time.Since(start))
	if len(findings) == 0 {
		return RedactResult{Content: content, Audit: audit}
	}
	return RedactResult{Content: replaceFindings(content, findings), Audit: audit}
}

// replaceFindings substitutes every occurrence of each secret. Longer
// secrets go first so a secret containing another is replaced whole.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Match) > len(sorted[j].Match)
	})
	for _, f := range sorted {
		if f.Match == "" {
			continue
		}
		content = strings.ReplaceAll(content, f.Match, fmt.Sprintf("[REDACTED:%s]", f.RuleID))
	}
	return content
}

func buildAuditLog(findings []Finding, processingTime time.Duration) AuditLog {
	redactions := make([]Redaction, 0, len(findings))
	ruleCounts := make(map[string]int)

	for _, f := range findings {
		redactions = append(redactions, Redaction{
			RuleID:      f.RuleID,
			RuleDesc:    f.RuleDesc,
			LineNumber:  f.Line,
			OriginalLen: len(f.Match),
		})
		ruleCounts[f.RuleID]++
	}

	return AuditLog{
		Timestamp:  time.Now(),
		Redactions: redactions,
		Summary: Summary{
			TotalSecrets:     len(findings),
			UniqueRules:      len(ruleCounts),
			RuleCounts:       ruleCounts,
			ProcessingTimeMs: processingTime.Milliseconds(),
		},
	}
}
