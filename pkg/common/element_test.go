package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementRowVariants(t *testing.T) {
	raw := `[
		{"type": "text", "label": "Domain", "value": "example.com", "placeholder": "Enter a domain"},
		[{"type": "title", "label": "Result", "title": "a", "subtitle": "b"}, {"type": "empty", "label": ""}]
	]`
	var rows []ElementRow
	require.NoError(t, json.Unmarshal([]byte(raw), &rows))
	require.Len(t, rows, 2)

	assert.False(t, rows[0].IsGroup())
	require.NotNil(t, rows[0].Element)
	assert.Equal(t, "example.com", rows[0].Element.Value)
	assert.Equal(t, "Enter a domain", rows[0].Element.Extra["placeholder"])

	assert.True(t, rows[1].IsGroup())
	require.Len(t, rows[1].Elements(), 2)
	assert.Equal(t, "a", rows[1].Group[0].Extra["title"])
	assert.Nil(t, rows[1].Group[0].Value)

	out, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestElementEmptyStringIsAValue(t *testing.T) {
	var e Element
	require.NoError(t, json.Unmarshal([]byte(`{"type":"text","label":"Name","value":""}`), &e))
	assert.Equal(t, "", e.Value)

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","label":"Name","value":""}`, string(out))
}

func TestEmptyGroupStaysGroup(t *testing.T) {
	var row ElementRow
	require.NoError(t, json.Unmarshal([]byte(`[]`), &row))
	assert.True(t, row.IsGroup())

	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestToFloat(t *testing.T) {
	for _, v := range []any{150, int64(150), float64(150), json.Number("150")} {
		f, ok := ToFloat(v)
		assert.True(t, ok)
		assert.Equal(t, float64(150), f)
	}
	_, ok := ToFloat("150")
	assert.False(t, ok)
}
