package secrets

import (
	"sort"
	"time"
)

// AuditLog records what was redacted. It never holds secret values.
type AuditLog struct {
	Timestamp  time.Time   `json:"timestamp"`
	Redactions []Redaction `json:"redactions"`
	Summary    Summary     `json:"summary"`
}

// Redaction describes a single redacted secret.
type Redaction struct {
	RuleID      string `json:"rule_id"`
	RuleDesc    string `json:"rule_desc"`
	LineNumber  int    `json:"line_number"`
	OriginalLen int    `json:"original_len"`
}

// Summary provides aggregate statistics about redactions.
type Summary struct {
	TotalSecrets     int            `json:"total_secrets"`
	UniqueRules      int            `json:"unique_rules"`
	RuleCounts       map[string]int `json:"rule_counts"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// HasRedactions returns true if any secrets were redacted.
func (a *AuditLog) HasRedactions() bool {
	return len(a.Redactions) > 0
}

// RuleIDs returns the distinct rule ids that fired, sorted.
func (a *AuditLog) RuleIDs() []string {
	ids := make([]string, 0, len(a.Summary.RuleCounts))
	for id := range a.Summary.RuleCounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
