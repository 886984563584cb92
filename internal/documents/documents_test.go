package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument_Render(t *testing.T) {
	assert.Equal(t, "TITLE: Returns\nThirty days.", Document{Title: "Returns", Content: "Thirty days."}.Render())
	assert.Equal(t, "Thirty days.", Document{Content: "Thirty days."}.Render())
}

func TestDocument_Validate(t *testing.T) {
	assert.NoError(t, Document{BusinessID: "b1", Content: "x"}.Validate())
	assert.ErrorIs(t, Document{Content: "x"}.Validate(), ErrInvalidDocument)
	assert.ErrorIs(t, Document{BusinessID: "b1"}.Validate(), ErrInvalidDocument)
}
