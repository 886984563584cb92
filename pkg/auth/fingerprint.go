// Package auth extracts and checks the credentials ragbrain accepts: the
// caller's gateway key, which is forwarded upstream, and the admin token
// that guards document ingestion.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short, stable, non-reversible identifier for a
// credential so that log lines can correlate callers without recording
// the key itself. The empty credential has the empty fingerprint.
func Fingerprint(credential string) string {
	if credential == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:6])
}
