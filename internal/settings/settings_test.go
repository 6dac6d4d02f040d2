package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempConfigDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
}

func TestLoadSettingsCreatesDefaultsOnFirstRun(t *testing.T) {
	withTempConfigDir(t)

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "6x3", s.Preset)
	assert.Equal(t, "usb", s.CaptureDevice)

	p, err := SettingsPath()
	require.NoError(t, err)
	_, err = os.Stat(p)
	require.NoError(t, err, "settings file should have been created on first load")
}

func TestSetPresetPersists(t *testing.T) {
	withTempConfigDir(t)

	s, err := LoadSettings()
	require.NoError(t, err)
	require.NoError(t, s.SetPreset("6x4"))

	reloaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "6x4", reloaded.Preset)
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	withTempConfigDir(t)
	s, err := LoadSettings()
	require.NoError(t, err)

	cp := s.Clone()
	require.NoError(t, s.SetPreset("6x4"))
	assert.Equal(t, "6x3", cp.Preset, "clone taken before the mutation should be unaffected")
}

func TestLoadKeymapCreatesDefaultDocument(t *testing.T) {
	withTempConfigDir(t)

	km, err := LoadKeymap()
	require.NoError(t, err)
	require.NotNil(t, km)

	p, err := KeymapPath()
	require.NoError(t, err)
	_, err = os.Stat(p)
	require.NoError(t, err)
}

func TestAtomicWriteLeavesNoTempFileBehind(t *testing.T) {
	withTempConfigDir(t)
	_, err := LoadSettings()
	require.NoError(t, err)

	dir, err := Dir()
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, filepath.Ext(e.Name()), ".tmp")
	}
}
