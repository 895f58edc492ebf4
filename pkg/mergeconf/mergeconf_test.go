package mergeconf_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocksoul/dprintx/pkg/mergeconf"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFindProjectConfig(t *testing.T) {
	t.Parallel()

	t.Run("found in start dir", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dprint.json"), `{}`)

		assert.Equal(t, filepath.Join(dir, "dprint.json"), mergeconf.FindProjectConfig(dir))
	})

	t.Run("found in parent", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		sub := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(sub, 0o755))
		writeFile(t, filepath.Join(root, "dprint.jsonc"), `{}`)

		assert.Equal(t, filepath.Join(root, "dprint.jsonc"), mergeconf.FindProjectConfig(sub))
	})

	t.Run("plain wins over commented", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dprint.json"), `{}`)
		writeFile(t, filepath.Join(dir, "dprint.jsonc"), `{}`)
		writeFile(t, filepath.Join(dir, ".dprint.json"), `{}`)

		assert.Equal(t, filepath.Join(dir, "dprint.json"), mergeconf.FindProjectConfig(dir))
	})

	t.Run("hidden variant found", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, ".dprint.jsonc"), `{}`)

		assert.Equal(t, filepath.Join(dir, ".dprint.jsonc"), mergeconf.FindProjectConfig(dir))
	})

	t.Run("closer dir wins over parent", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		sub := filepath.Join(root, "proj")
		writeFile(t, filepath.Join(root, "dprint.json"), `{}`)
		writeFile(t, filepath.Join(sub, ".dprint.jsonc"), `{}`)

		assert.Equal(t, filepath.Join(sub, ".dprint.jsonc"), mergeconf.FindProjectConfig(sub))
	})

	t.Run("none found", func(t *testing.T) {
		t.Parallel()

		assert.Empty(t, mergeconf.FindProjectConfig(t.TempDir()))
	})
}

func readMerged(t *testing.T, tc *mergeconf.TempConfig) map[string]any {
	t.Helper()

	data, err := os.ReadFile(tc.Path())
	require.NoError(t, err)

	doc := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &doc))

	return doc
}

func TestBuild(t *testing.T) {
	t.Run("no local config", func(t *testing.T) {
		tc, err := mergeconf.Build(t.TempDir(), "/config/default.json")
		require.NoError(t, err)
		assert.Nil(t, tc)
	})

	t.Run("extends absent becomes string", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dprint.json"), `{"lineWidth": 100}`)

		tc, err := mergeconf.Build(dir, "/config/default.json")
		require.NoError(t, err)
		require.NotNil(t, tc)

		t.Cleanup(tc.Release)

		doc := readMerged(t, tc)
		assert.Equal(t, "/config/default.json", doc["extends"])
		assert.InDelta(t, 100, doc["lineWidth"], 0)
	})

	t.Run("extends string becomes array", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dprint.json"), `{"extends": "https://example.com/base.json"}`)

		tc, err := mergeconf.Build(dir, "/config/default.json")
		require.NoError(t, err)
		require.NotNil(t, tc)

		t.Cleanup(tc.Release)

		doc := readMerged(t, tc)
		assert.Equal(t,
			[]any{"/config/default.json", "https://example.com/base.json"},
			doc["extends"])
	})

	t.Run("extends array gets profile prepended", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dprint.json"), `{"extends": ["a.json", "b.json"]}`)

		tc, err := mergeconf.Build(dir, "/config/default.json")
		require.NoError(t, err)
		require.NotNil(t, tc)

		t.Cleanup(tc.Release)

		doc := readMerged(t, tc)
		assert.Equal(t, []any{"/config/default.json", "a.json", "b.json"}, doc["extends"])
	})

	t.Run("extends other shape overwritten", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dprint.json"), `{"extends": 42}`)

		tc, err := mergeconf.Build(dir, "/config/default.json")
		require.NoError(t, err)
		require.NotNil(t, tc)

		t.Cleanup(tc.Release)

		doc := readMerged(t, tc)
		assert.Equal(t, "/config/default.json", doc["extends"])
	})

	t.Run("self-referential profile config", func(t *testing.T) {
		dir := t.TempDir()
		profile := filepath.Join(dir, "dprint.json")
		writeFile(t, profile, `{"lineWidth": 100}`)

		tc, err := mergeconf.Build(dir, profile)
		require.NoError(t, err)
		assert.Nil(t, tc)
	})

	t.Run("comments in project config", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dprint.jsonc"), "{\n\t// local overrides\n\t\"indentWidth\": 2,\n}\n")

		tc, err := mergeconf.Build(dir, "/config/default.json")
		require.NoError(t, err)
		require.NotNil(t, tc)

		t.Cleanup(tc.Release)

		doc := readMerged(t, tc)
		assert.Equal(t, "/config/default.json", doc["extends"])
		assert.InDelta(t, 2, doc["indentWidth"], 0)
	})

	t.Run("invalid project config", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "dprint.json"), `{not json`)

		tc, err := mergeconf.Build(dir, "/config/default.json")
		require.Error(t, err)
		assert.Nil(t, tc)
	})
}

func TestTempConfig_Release(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dprint.json"), `{}`)

	tc, err := mergeconf.Build(dir, "/config/default.json")
	require.NoError(t, err)
	require.NotNil(t, tc)

	// File exists right after creation.
	_, err = os.Stat(tc.Path())
	require.NoError(t, err)

	tc.Release()

	_, err = os.Stat(tc.Path())
	require.ErrorIs(t, err, os.ErrNotExist)

	// Releasing again is a no-op.
	tc.Release()
}

func TestBuild_UniquePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dprint.json"), `{}`)

	a, err := mergeconf.Build(dir, "/config/default.json")
	require.NoError(t, err)

	t.Cleanup(a.Release)

	b, err := mergeconf.Build(dir, "/config/default.json")
	require.NoError(t, err)

	t.Cleanup(b.Release)

	assert.NotEqual(t, a.Path(), b.Path())
}
