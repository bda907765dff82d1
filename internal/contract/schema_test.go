package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenSchema = map[string]any{
	"type":     "object",
	"required": []any{"tokenId"},
	"properties": map[string]any{
		"tokenId": map[string]any{"type": "string", "minLength": 1},
	},
}

func TestSchema_Decode(t *testing.T) {
	s, err := Compile("token.json", tokenSchema)
	require.NoError(t, err)

	var out struct {
		TokenID string `json:"tokenId"`
	}
	require.NoError(t, s.Decode([]byte(`{"tokenId":"T-1"}`), &out))
	assert.Equal(t, "T-1", out.TokenID)
}

func TestSchema_ValidateRejects(t *testing.T) {
	s := MustCompile("token.json", tokenSchema)

	tests := map[string]string{
		"missing field": `{}`,
		"empty token":   `{"tokenId":""}`,
		"wrong type":    `{"tokenId":7}`,
		"not json":      `tokenId`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Validate([]byte(body)))
		})
	}
}
