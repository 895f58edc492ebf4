package routing_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocksoul/dprintx/pkg/routing"
)

func TestRules_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err   error
		input string
		want  routing.Rules
	}{
		"preserves declaration order": {
			input: `{"**/*.rs": "default", "**/vendor/**": "ignore", "*.md": "docs"}`,
			want: routing.Rules{
				{Pattern: "**/*.rs", Profile: "default"},
				{Pattern: "**/vendor/**", Profile: "ignore"},
				{Pattern: "*.md", Profile: "docs"},
			},
		},
		"empty object": {
			input: `{}`,
			want:  routing.Rules{},
		},
		"duplicate pattern": {
			input: `{"*.go": "a", "*.go": "b"}`,
			err:   routing.ErrDuplicatePattern,
		},
		"non-string value": {
			input: `{"*.go": 42}`,
			err:   assert.AnError,
		},
		"not an object": {
			input: `["*.go"]`,
			err:   assert.AnError,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var got routing.Rules

			err := json.Unmarshal([]byte(tc.input), &got)

			if tc.err != nil {
				require.Error(t, err)

				if tc.err != assert.AnError {
					require.ErrorIs(t, err, tc.err)
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRules_MarshalJSON(t *testing.T) {
	t.Parallel()

	rs := routing.Rules{
		{Pattern: "**/*.rs", Profile: "default"},
		{Pattern: "*.md", Profile: "docs"},
	}

	data, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"**/*.rs":"default","*.md":"docs"}`, string(data))

	// Round trip keeps the order.
	var got routing.Rules

	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rs, got)
}

func TestRules_Profiles(t *testing.T) {
	t.Parallel()

	rs := routing.Rules{
		{Pattern: "**/*.rs", Profile: "default"},
		{Pattern: "**/*.toml", Profile: "default"},
		{Pattern: "*.md", Profile: "docs"},
		{Pattern: "*.txt", Profile: "docs"},
		{Pattern: "**/vendor/**", Profile: "ignore"},
	}

	assert.Equal(t, []string{"default", "docs", "ignore"}, rs.Profiles())
	assert.Nil(t, routing.Rules{}.Profiles())
}
