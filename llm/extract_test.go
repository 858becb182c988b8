package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONFencedObject(t *testing.T) {
	raw, ok := ExtractJSON("```json\n{\"summary\": \"good game\"}\n```")
	require.True(t, ok)
	assert.JSONEq(t, `{"summary": "good game"}`, string(raw))
}

func TestExtractJSONProseWrapped(t *testing.T) {
	content := "Sure! Here is the analysis you asked for:\n" +
		`{"gamer_type": "explorer", "recommendations": []}` +
		"\nLet me know if you need anything else."
	raw, ok := ExtractJSON(content)
	require.True(t, ok)
	assert.JSONEq(t, `{"gamer_type": "explorer", "recommendations": []}`, string(raw))
}

func TestExtractJSONBareArray(t *testing.T) {
	raw, ok := ExtractJSON("[1, 2, 3]")
	require.True(t, ok)
	assert.JSONEq(t, `[1, 2, 3]`, string(raw))
}

func TestExtractJSONPlainObject(t *testing.T) {
	raw, ok := ExtractJSON(`{"a": {"b": [1]}}`)
	require.True(t, ok)
	assert.JSONEq(t, `{"a": {"b": [1]}}`, string(raw))
}

func TestExtractJSONGarbage(t *testing.T) {
	_, ok := ExtractJSON("the model refused to answer")
	assert.False(t, ok)

	_, ok = ExtractJSON("{broken json")
	assert.False(t, ok)

	_, ok = ExtractJSON("")
	assert.False(t, ok)
}
