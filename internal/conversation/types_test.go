package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurn_Validate(t *testing.T) {
	tests := []struct {
		name    string
		turn    Turn
		wantErr bool
	}{
		{"user turn", Turn{UserID: "u1", BusinessID: "b1", Role: RoleUser}, false},
		{"assistant turn", Turn{UserID: "u1", BusinessID: "b1", Role: RoleAssistant}, false},
		{"missing user", Turn{BusinessID: "b1", Role: RoleUser}, true},
		{"missing business", Turn{UserID: "u1", Role: RoleUser}, true},
		{"system role", Turn{UserID: "u1", BusinessID: "b1", Role: "system"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.turn.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTurn)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRender(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "Where is my order?"},
		{Role: RoleAssistant, Content: "It shipped today."},
	}
	assert.Equal(t, "USER: Where is my order?", turns[0].Render())
	assert.Equal(t, "USER: Where is my order?\nASSISTANT: It shipped today.", RenderAll(turns))
	assert.Equal(t, "", RenderAll(nil))
}

func TestMessages(t *testing.T) {
	msgs := Messages([]Turn{{Role: RoleUser, Content: "a", UserID: "u"}, {Role: RoleAssistant, Content: "b"}})
	assert.Equal(t, []Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}}, msgs)
	assert.Empty(t, Messages(nil))
}
