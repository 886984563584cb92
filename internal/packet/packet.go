// Package packet renders retrieved memory into the system message that
// grounds a reply.
package packet

import (
	"strings"

	"github.com/fyrsmithlabs/ragbrain/internal/retrieval"
)

const none = "(none)"

var rules = []string{
	"Rules:",
	"- Use TENANT DOCS as authoritative when relevant.",
	"- Use USER MEMORY to remain consistent with user-specific facts.",
	"- If context is empty/irrelevant, answer normally.",
	"- Never claim to have read external files unless content is included below.",
}

// Build renders the context packet. Empty sections render as "(none)" and
// the policy override block is appended only when policy is non-blank.
func Build(recentThread, userHits, docHits, policy string) string {
	lines := make([]string, 0, 16)
	lines = append(lines, "RAG CONTEXT PACKET", "")
	lines = append(lines, rules...)
	lines = append(lines,
		"",
		"RECENT THREAD:",
		orNone(recentThread),
		"",
		"TOP USER MEMORY HITS (semantic):",
		orNone(userHits),
		"",
		"TOP TENANT MEMORY HITS (semantic):",
		orNone(docHits),
	)
	override := ""
	if p := strings.TrimSpace(policy); p != "" {
		override = "\nRAG POLICY OVERRIDE:\n" + p
	}
	lines = append(lines, override)
	return strings.Join(lines, "\n")
}

func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}

// Assembler binds the deployment's policy override.
type Assembler struct {
	Policy string
}

// NewAssembler returns an Assembler for policy.
func NewAssembler(policy string) Assembler {
	return Assembler{Policy: policy}
}

// Build renders c with the bound policy.
func (a Assembler) Build(c retrieval.Context) string {
	return Build(c.RecentThread, c.UserHits, c.DocHits, a.Policy)
}
