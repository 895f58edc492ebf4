package jsonc_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocksoul/dprintx/pkg/jsonc"
)

func TestStrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "line comment",
			input: "{\n  // a comment\n  \"key\": \"value\"\n}",
			want:  "{\n  \n  \"key\": \"value\"\n}",
		},
		{
			name:  "inline comment",
			input: `{"key": "value"} // trailing`,
			want:  `{"key": "value"} `,
		},
		{
			name:  "block comment",
			input: `{"a": /* gone */ 1}`,
			want:  `{"a":  1}`,
		},
		{
			name:  "comment markers inside string literal",
			input: `{"url": "http://example.com", "b": "/* keep */"}`,
			want:  `{"url": "http://example.com", "b": "/* keep */"}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"a": "say \"hi\" // still a string"}`,
			want:  `{"a": "say \"hi\" // still a string"}`,
		},
		{
			name:  "trailing comma in object",
			input: `{"a": 1, "b": 2,}`,
			want:  `{"a": 1, "b": 2}`,
		},
		{
			name:  "trailing comma in array",
			input: `{"a": [1, 2,]}`,
			want:  `{"a": [1, 2]}`,
		},
		{
			name:  "trailing comma separated by whitespace",
			input: "{\"a\": 1,\n  \n}",
			want:  "{\"a\": 1\n  \n}",
		},
		{
			name:  "comma inside string preserved",
			input: `{"a": "x,}"}`,
			want:  `{"a": "x,}"}`,
		},
		{
			name:  "unterminated block comment",
			input: `{"a": 1} /* never closed`,
			want:  `{"a": 1} `,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, string(jsonc.Strip([]byte(tt.input))))
		})
	}
}

func TestStripProducesValidJSON(t *testing.T) {
	t.Parallel()

	input := `{
  // Path to real dprint binary.
  "dprint": "~/.cargo/bin/dprint",
  "profiles": {
    "maintainer": "~/.config/dprint/dprint-maintainer.jsonc",
    "default": "~/.config/dprint/dprint-default.jsonc",
  },
  "match": {
    "**/cmdb/**": "maintainer",
    /* catch-all */
    "**": "default",
  },
}`

	var v map[string]any

	require.NoError(t, json.Unmarshal(jsonc.Strip([]byte(input)), &v))
	assert.Equal(t, "~/.cargo/bin/dprint", v["dprint"])
	assert.Len(t, v["profiles"], 2)
}
