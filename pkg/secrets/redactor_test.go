package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_NoSecrets(t *testing.T) {
	r, err := NewRedactor()
	require.NoError(t, err)

	content := "TypeError: Cannot read properties of undefined (reading 'map')\n    at render (app.js:12:5)"
	res := r.Redact(content)
	assert.Equal(t, content, res.Content)
	assert.False(t, res.Audit.HasRedactions())
	assert.Equal(t, 0, res.Audit.Summary.TotalSecrets)
}

func TestRedactor_Empty(t *testing.T) {
	r, err := NewRedactor()
	require.NoError(t, err)
	assert.Equal(t, "", r.Redact("").Content)
}

func TestRedactor_ConcurrentUse(t *testing.T) {
	r, err := NewRedactor()
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = r.Redact("nothing to see here")
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
}

func TestReplaceFindings(t *testing.T) {
	content := "key=abcd1234efgh token=abcd1234efgh5678 again abcd1234efgh"
	got := replaceFindings(content, []Finding{
		{RuleID: "short", Match: "abcd1234efgh"},
		{RuleID: "long", Match: "abcd1234efgh5678"},
	})
	assert.Equal(t, "key=[REDACTED:short] token=[REDACTED:long] again [REDACTED:short]", got)
	assert.NotContains(t, got, "abcd1234")
}

func TestBuildAuditLog(t *testing.T) {
	audit := buildAuditLog([]Finding{
		{RuleID: "github-pat", Line: 1, Match: "ghp_xxxxxxxx"},
		{RuleID: "github-pat", Line: 2, Match: "ghp_yyyyyyyy"},
		{RuleID: "slack-bot-token", Line: 3, Match: "xoxb-zzz"},
	}, 0)

	assert.True(t, audit.HasRedactions())
	assert.Equal(t, 3, audit.Summary.TotalSecrets)
	assert.Equal(t, 2, audit.Summary.UniqueRules)
	assert.Equal(t, []string{"github-pat", "slack-bot-token"}, audit.RuleIDs())
	for _, r := range audit.Redactions {
		assert.NotContains(t, r.RuleDesc, "ghp_")
	}
}

func TestLoadAllowlists(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "allow.toml")
	require.NoError(t, os.WriteFile(good, []byte("[allowlist]\nregexes = [\"DEMO_KEY_[0-9]+\"]\n"), 0o600))

	list, err := LoadAllowlists("", filepath.Join(dir, "missing.toml"), good)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEMO_KEY_[0-9]+"}, list.Regexes)

	badRegex := filepath.Join(dir, "bad-regex.toml")
	require.NoError(t, os.WriteFile(badRegex, []byte("[allowlist]\nregexes = [\"[unclosed\"]\n"), 0o600))
	_, err = LoadAllowlists(badRegex)
	assert.ErrorIs(t, err, ErrInvalidRegex)

	badTOML := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(badTOML, []byte("[allowlist\n"), 0o600))
	_, err = LoadAllowlists(badTOML)
	assert.ErrorIs(t, err, ErrInvalidTOML)

	r, err := NewRedactor(good)
	require.NoError(t, err)
	assert.True(t, strings.Contains(r.Redact("DEMO_KEY_1").Content, "DEMO_KEY_1"))
}
