package matcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mocksoul/dprintx/pkg/routing"
)

// contentBlockBytes is the approximate block size for content matching. Files
// are read in line-aligned blocks of at least this many bytes and each block
// is matched independently.
const contentBlockBytes = 8192

var (
	// ErrInvalidPattern is returned when a glob pattern does not compile.
	ErrInvalidPattern = errors.New("invalid glob pattern")

	// ErrInvalidRegexp is returned when a content pattern does not compile.
	ErrInvalidRegexp = errors.New("invalid content pattern")
)

type globRule struct {
	pattern string
	profile string
}

type contentRule struct {
	re      *regexp.Regexp
	profile string
}

// Matcher routes file paths to profiles using the config's ordered rules.
type Matcher struct {
	cfg     *routing.Config
	rules   []globRule
	content []contentRule
}

// New compiles the config's match rules into a [Matcher].
func New(cfg *routing.Config) (*Matcher, error) {
	m := &Matcher{cfg: cfg}

	for _, r := range cfg.Match {
		// Expand ~ so globs like ~/workspace/** work.
		pattern := routing.ExpandTilde(r.Pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, r.Pattern)
		}

		m.rules = append(m.rules, globRule{pattern: pattern, profile: r.Profile})
	}

	for _, r := range cfg.MatchContent {
		pattern := r.Pattern
		if !strings.HasPrefix(pattern, "(?m)") {
			pattern = "(?m)" + pattern
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidRegexp, r.Pattern, err)
		}

		m.content = append(m.content, contentRule{re: re, profile: r.Profile})
	}

	return m, nil
}

// MatchProfile returns the profile name of the first path rule matching path.
func (m *Matcher) MatchProfile(path string) (string, bool) {
	for _, r := range m.rules {
		ok, err := doublestar.Match(r.pattern, path)
		if err == nil && ok {
			return r.profile, true
		}
	}

	return "", false
}

// Resolve routes a file path to a [routing.Resolution].
//
// A nil resolution means no path rule matched and the file is skipped;
// content rules are not consulted for such files. When content rules are
// configured, the file is scanned in line-aligned blocks and the first
// matching content rule overrides the path result. A file that cannot be
// read keeps its path result.
func (m *Matcher) Resolve(path string) (*routing.Resolution, error) {
	pathRes, err := m.resolveByPath(path)
	if err != nil {
		return nil, err
	}
	if pathRes == nil || len(m.content) == 0 {
		return pathRes, nil
	}

	profile, ok, err := m.matchFileContent(path)
	if err != nil || !ok {
		return pathRes, nil
	}

	res, err := m.cfg.ResolveProfile(profile)
	if err != nil {
		return nil, fmt.Errorf("match_content rule: %w", err)
	}

	return res, nil
}

func (m *Matcher) resolveByPath(path string) (*routing.Resolution, error) {
	profile, ok := m.MatchProfile(path)
	if !ok {
		return nil, nil //nolint:nilnil // No match means no resolution.
	}

	res, err := m.cfg.ResolveProfile(profile)
	if err != nil {
		return nil, fmt.Errorf("match rule: %w", err)
	}

	return res, nil
}

func (m *Matcher) matchFileContent(path string) (string, bool, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return "", false, fmt.Errorf("read file for content match: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file.

	profile, ok, err := m.scanContent(f)
	if err != nil {
		return "", false, fmt.Errorf("read file for content match: %w", err)
	}

	return profile, ok, nil
}

// scanContent reads r in line-aligned blocks of roughly [contentBlockBytes]
// and matches each block independently against the content rules, in rule
// order. The final partial block is matched too.
func (m *Matcher) scanContent(r io.Reader) (string, bool, error) {
	br := bufio.NewReader(r)
	block := make([]byte, 0, contentBlockBytes)

	for {
		line, err := br.ReadBytes('\n')
		block = append(block, line...)

		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", false, err
			}

			if len(block) > 0 {
				if profile, ok := m.matchBlock(block); ok {
					return profile, true, nil
				}
			}

			return "", false, nil
		}

		if len(block) >= contentBlockBytes {
			if profile, ok := m.matchBlock(block); ok {
				return profile, true, nil
			}

			block = block[:0]
		}
	}
}

func (m *Matcher) matchBlock(block []byte) (string, bool) {
	for _, r := range m.content {
		if r.re.Match(block) {
			return r.profile, true
		}
	}

	return "", false
}
