package routing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
)

//go:generate go run ../../internal/schemagen/main.go -o routing.v1.json

// ErrUnknownProfile is returned when a rule references a profile that is not
// declared in the profiles section. The check is lazy: it happens when a rule
// actually resolves, not at load time.
var ErrUnknownProfile = errors.New("unknown profile")

// ProfileSet maps profile names to config paths. A null value declares an
// ignore profile: files routed to it are skipped entirely.
type ProfileSet map[string]*string

func (ProfileSet) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "object",
		Title: "Profiles",
		AdditionalProperties: &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				{Type: "string"},
				{Type: "null"},
			},
		},
	}
}

// Config is the dprintx routing configuration (dprintx.jsonc).
type Config struct {
	// Profiles contains named formatter configurations.
	Profiles ProfileSet `json:"profiles" jsonschema:"title=Profiles"`
	// Dprint is the path to the real dprint binary.
	Dprint string `json:"dprint" jsonschema:"title=Formatter Binary"`
	// DiffPager is an optional pager command for check diffs (e.g. "delta -s").
	DiffPager string `json:"diff_pager,omitempty" jsonschema:"title=Diff Pager"`
	// Match contains ordered glob rules; the first matching rule wins.
	Match Rules `json:"match" jsonschema:"title=Match Rules"`
	// MatchContent contains ordered regex rules applied to file content,
	// overriding the path match.
	MatchContent Rules `json:"match_content,omitempty" jsonschema:"title=Content Rules"`
}

// Resolution is the outcome of routing a file to a profile. The zero Ignore
// with a ConfigPath means "format with this config"; Ignore means "skip the
// file". Absence of any resolution is represented by a nil *Resolution.
type Resolution struct {
	ConfigPath string
	Ignore     bool
}

// DprintPath returns the formatter binary path with ~ expanded.
func (c *Config) DprintPath() string {
	return ExpandTilde(c.Dprint)
}

// ResolveProfile resolves a profile name to a [Resolution].
// A name absent from the profile set is an [ErrUnknownProfile] error.
func (c *Config) ResolveProfile(name string) (*Resolution, error) {
	path, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}

	if path == nil {
		return &Resolution{Ignore: true}, nil
	}

	return &Resolution{ConfigPath: ExpandTilde(*path)}, nil
}

// ExpandTilde expands a leading ~/ to the user home directory.
func ExpandTilde(path string) string {
	if rest, ok := strippedTilde(path); ok {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			return filepath.Join(home, rest)
		}
	}

	return path
}

func strippedTilde(path string) (string, bool) {
	if len(path) >= 2 && path[0] == '~' && path[1] == '/' {
		return path[2:], true
	}

	return "", false
}
