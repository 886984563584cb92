package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	v1 "github.com/fyrsmithlabs/ragbrain/pkg/api/v1"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"provider text", 402, &StatusError{Op: OpEmbed, Status: 402, Message: "Out of credit"}, 402, "Out of credit"},
		{"bare status", 404, &StatusError{Op: OpEmbed, Status: 404}, 404, "Embedding failed (HTTP 404)"},
		{"parse", 200, &ParseError{Op: OpEmbed, Status: 200, Err: errors.New("eof")}, 500, "Embedding failed (HTTP 200)"},
		{"transport", 0, &TransportError{Op: OpEmbed, Err: errors.New("dial tcp")}, 500, "Embedding failed (gateway unreachable)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := APIError("Embedding failed", tt.status, tt.err)
			assert.Equal(t, v1.KindUpstream, v1.KindOf(err))
			assert.Equal(t, tt.wantStatus, v1.StatusOf(err))
			assert.Equal(t, tt.wantMsg, v1.MessageOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
