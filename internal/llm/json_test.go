package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"padded", "  \n{\"a\":1}\n ", `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`, true},
		{"fenced one line", "```json {\"a\":1}```", `{"a":1}`, true},
		{"prose", "Sure! Here it is: {\"a\":{\"b\":2}} Hope it helps.", `{"a":{"b":2}}`, true},
		{"array", `[1,2]`, "", false},
		{"broken", `{"a":`, "", false},
		{"empty", ``, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, ErrInvalidJSON)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestDecode(t *testing.T) {
	type answer struct {
		Files []string `json:"important_files"`
	}
	got, err := Decode[answer]([]byte("```json\n{\"important_files\":[\"a.go\"]}\n```"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, got.Files)

	_, err = Decode[answer]([]byte(`{"important_files":"a.go"}`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}
