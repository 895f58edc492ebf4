package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ErrDuplicatePattern is returned when a rule set declares a pattern twice.
var ErrDuplicatePattern = errors.New("duplicate pattern")

// Rule maps one pattern to one profile name.
type Rule struct {
	Pattern string
	Profile string
}

// Rules is an ordered rule set. It is declared as a JSON object; declaration
// order is the rule order, so decoding goes through the token stream instead
// of a map.
type Rules []Rule

func (rs *Rules) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode rules: expected object, got %v", tok)
	}

	rules := Rules{}
	seen := map[string]struct{}{}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode rules: %w", err)
		}

		pattern, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode rules: expected string key, got %v", keyTok)
		}
		if _, dup := seen[pattern]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicatePattern, pattern)
		}

		seen[pattern] = struct{}{}

		var profile string
		if err := dec.Decode(&profile); err != nil {
			return fmt.Errorf("decode rules: pattern %q: %w", pattern, err)
		}

		rules = append(rules, Rule{Pattern: pattern, Profile: profile})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}

	*rs = rules

	return nil
}

func (rs Rules) MarshalJSON() ([]byte, error) {
	b := &bytes.Buffer{}
	b.WriteByte('{')

	for i, r := range rs {
		if i > 0 {
			b.WriteByte(',')
		}

		k, err := json.Marshal(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("marshal rules: %w", err)
		}

		v, err := json.Marshal(r.Profile)
		if err != nil {
			return nil, fmt.Errorf("marshal rules: %w", err)
		}

		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}

	b.WriteByte('}')

	return b.Bytes(), nil
}

// Profiles returns the distinct profile names referenced by the rules, in
// first-seen order.
func (rs Rules) Profiles() []string {
	var names []string

	seen := map[string]struct{}{}
	for _, r := range rs {
		if _, ok := seen[r.Profile]; ok {
			continue
		}

		seen[r.Profile] = struct{}{}
		names = append(names, r.Profile)
	}

	return names
}

func (Rules) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "object",
		Title: "Rules",
		AdditionalProperties: &jsonschema.Schema{
			Type: "string",
		},
	}
}
