package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/mocksoul/dprintx/pkg/jsonc"
	"github.com/mocksoul/dprintx/pkg/schema"
)

// ConfigFileName is the routing config file name under the dprint config
// directory.
const ConfigFileName = "dprintx.jsonc"

var (
	//go:embed routing.v1.json
	schemaJSON []byte

	DefaultValidator = schema.MustNewValidator("/routing.v1.json", schemaJSON)
)

type ConfigValidator interface {
	Validate(data any) error
}

// Loader parses and validates routing configuration data. The raw bytes may
// contain comments and trailing commas; they are stripped before parsing.
type Loader struct {
	cv   ConfigValidator
	data []byte
}

func NewLoaderFromBytes(data []byte, opts ...LoaderOpt) *Loader {
	l := &Loader{
		cv:   DefaultValidator,
		data: jsonc.Strip(data),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

func NewLoaderFromFile(path string, opts ...LoaderOpt) (*Loader, error) {
	data, err := readConfig(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return NewLoaderFromBytes(data, opts...), nil
}

type LoaderOpt func(*Loader)

func WithConfigValidator(cv ConfigValidator) LoaderOpt {
	return func(l *Loader) {
		l.cv = cv
	}
}

// Validate validates configuration data with [ConfigValidator] without
// loading it into a [Config] struct.
func (l *Loader) Validate() error {
	var anyConfig any

	err := json.Unmarshal(l.data, &anyConfig)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	err = l.cv.Validate(anyConfig)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}

func (l *Loader) Load() (*Config, error) {
	err := l.Validate()
	if err != nil {
		return nil, err
	}

	c := &Config{}
	dec := json.NewDecoder(bytes.NewReader(l.data))
	dec.DisallowUnknownFields()

	err = dec.Decode(c)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return c, nil
}

// Load reads, validates, and parses the routing config at path.
func Load(path string) (*Config, error) {
	l, err := NewLoaderFromFile(path)
	if err != nil {
		return nil, err
	}

	c, err := l.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

// LoadDefault loads the routing config from [GetPath]. A missing file is not
// an error: it returns (nil, nil) so callers can fall back to plain
// passthrough. An existing but invalid file is an error.
func LoadDefault() (*Config, error) {
	path := GetPath()

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	return Load(path)
}

// GetPath returns the default routing config path.
func GetPath() string {
	if xdgHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdgHome != "" {
		return filepath.Join(xdgHome, "dprint", ConfigFileName)
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".config", "dprint", ConfigFileName)
	}

	tmpConfig := filepath.Join(os.TempDir(), "dprint", ConfigFileName)

	slog.Warn("could not determine user config directory, using temp path for config",
		slog.String("path", tmpConfig),
		slog.Any("error", fmt.Errorf("$XDG_CONFIG_HOME is unset, fall back to home directory: %w", err)),
	)

	return tmpConfig
}

func readConfig(path string) ([]byte, error) {
	pathInfo, err := os.Stat(path)
	if pathInfo != nil {
		if err == nil && pathInfo.IsDir() {
			return nil, fmt.Errorf("%s: path is a directory", path)
		}
		if err == nil && !pathInfo.Mode().IsRegular() {
			return nil, fmt.Errorf("%s: unknown file state", path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}
