package mergeconf

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/mocksoul/dprintx/pkg/jsonc"
)

// projectConfigNames are the project-local config candidates, checked in
// order at each directory level. Plain variants win over commented ones.
var projectConfigNames = []string{
	"dprint.json",
	"dprint.jsonc",
	".dprint.json",
	".dprint.jsonc",
}

// tempCounter distinguishes merged configs written by one process.
var tempCounter atomic.Uint64

// TempConfig guards one merged config file on disk. Release deletes the file
// and is safe to call more than once and from any exit path.
type TempConfig struct {
	path    string
	release sync.Once
}

// Path returns the merged config file path.
func (tc *TempConfig) Path() string {
	return tc.path
}

// Release deletes the backing file. Exactly one call wins.
func (tc *TempConfig) Release() {
	tc.release.Do(func() {
		err := os.Remove(tc.path)
		if err != nil {
			slog.Debug("remove merged config",
				slog.String("path", tc.path),
				slog.Any("error", err),
			)
		}
	})
}

// FindProjectConfig walks from dir upward looking for a project-local dprint
// config. It returns the first candidate found, or "" when no level has one.
func FindProjectConfig(dir string) string {
	for {
		for _, name := range projectConfigNames {
			candidate := filepath.Join(dir, name)

			info, err := os.Stat(candidate)
			if err == nil && info.Mode().IsRegular() {
				return candidate
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}

		dir = parent
	}
}

// Build constructs a merged config for files under fileDir, extending
// profileConfig. It returns (nil, nil) when no project-local config exists,
// or when the local config is the profile config itself.
func Build(fileDir, profileConfig string) (*TempConfig, error) {
	local := FindProjectConfig(fileDir)
	if local == "" {
		return nil, nil //nolint:nilnil // No local config means no merge.
	}

	if samePath(local, profileConfig) {
		// The profile config was found as the project config. Extending it
		// with itself would be self-referential.
		return nil, nil //nolint:nilnil
	}

	data, err := os.ReadFile(local) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read project config: %w", err)
	}

	doc := map[string]any{}

	err = json.Unmarshal(jsonc.Strip(data), &doc)
	if err != nil {
		return nil, fmt.Errorf("parse project config %s: %w", local, err)
	}

	injectExtends(doc, profileConfig)

	merged, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize merged config: %w", err)
	}

	path, err := writeTempConfig(merged)
	if err != nil {
		return nil, err
	}

	slog.Debug("built merged config",
		slog.String("project", local),
		slog.String("profile", profileConfig),
		slog.String("merged", path),
	)

	return &TempConfig{path: path}, nil
}

// injectExtends prepends profilePath to the doc's extends chain. The profile
// is extended first, so project settings applied after it take precedence.
func injectExtends(doc map[string]any, profilePath string) {
	switch v := doc["extends"].(type) {
	case string:
		doc["extends"] = []any{profilePath, v}
	case []any:
		doc["extends"] = append([]any{profilePath}, v...)
	default:
		doc["extends"] = profilePath
	}
}

func writeTempConfig(data []byte) (string, error) {
	dir := filepath.Join(runtimeDir(), "dprintx")

	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return "", fmt.Errorf("create merged config dir: %w", err)
	}

	name := fmt.Sprintf("merged-%d-%d.json", os.Getpid(), tempCounter.Add(1))
	path := filepath.Join(dir, name)

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return "", fmt.Errorf("write merged config: %w", err)
	}

	return path, nil
}

func runtimeDir() string {
	if dir, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && dir != "" {
		return dir
	}

	return os.TempDir()
}

func samePath(a, b string) bool {
	if a == b {
		return true
	}

	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}

	return filepath.Clean(absA) == filepath.Clean(absB)
}
