package keymap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyLayouts(t *testing.T) {
	km, err := Load([]byte(`{"version":1,"layouts":{"6x3":{"mappings":{},"custom_buttons":{}}}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, km.Version)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	_, err := Load([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadUpgradesLegacyDocument(t *testing.T) {
	legacy := `{"0":{"right:0:0":{"primary":{"label":"a","semantic":"letter"}}}}`
	km, err := Load([]byte(legacy))
	require.NoError(t, err)
	m := km.Resolve("6x3", 0, "right:0:0", "z")
	assert.Equal(t, "a", m.Primary.Label)
}

func TestLoadIsCaseInsensitiveOnTopLevelFieldNames(t *testing.T) {
	doc := `{"Version":1,"Layouts":{"6x3":{"mappings":{"0":{"right:0:0":{"primary":{"label":"a","semantic":"letter"}}}},"custom_buttons":{}}}}`
	km, err := Load([]byte(doc))
	require.NoError(t, err)
	m := km.Resolve("6x3", 0, "right:0:0", "z")
	assert.Equal(t, "a", m.Primary.Label)
}

func TestLoadRejectsOutOfRangeLayer(t *testing.T) {
	doc := `{"version":1,"layouts":{"6x3":{"mappings":{"99":{}},"custom_buttons":{}}}}`
	_, err := Load([]byte(doc))
	assert.Error(t, err)
}

func TestResolveFallsBackToDefaultLabel(t *testing.T) {
	km, err := Load([]byte(`{"version":1,"layouts":{"6x3":{"mappings":{},"custom_buttons":{}}}}`))
	require.NoError(t, err)
	m := km.Resolve("6x3", 0, "right:0:0", "q")
	assert.Equal(t, "q", m.Primary.Label)
	assert.Equal(t, ActionLetter, m.Primary.Semantic)
}

func TestEncodeRoundTrip(t *testing.T) {
	doc := `{"version":1,"layouts":{"6x3":{"mappings":{"0":{"right:0:0":{"primary":{"label":"a","semantic":"letter"}}}},"custom_buttons":{}}}}`
	km, err := Load([]byte(doc))
	require.NoError(t, err)
	data, err := km.Encode()
	require.NoError(t, err)
	km2, err := Load(data)
	require.NoError(t, err)
	m := km2.Resolve("6x3", 0, "right:0:0", "z")
	assert.Equal(t, "a", m.Primary.Label)
}

func TestEncodePreservesUnknownTopLevelFields(t *testing.T) {
	doc := `{"version":1,"extra_field":"keep-me","layouts":{"6x3":{"mappings":{},"custom_buttons":{}}}}`
	km, err := Load([]byte(doc))
	require.NoError(t, err)
	data, err := km.Encode()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "extra_field"))
}

func TestCustomButtonsForReturnsInsertionOrder(t *testing.T) {
	doc := `{"version":1,"layouts":{"6x3":{"mappings":{},"custom_buttons":{"0":[
		{"id":"b1","side":"right","x":0,"y":0,"w":0.1,"h":0.1,"primary":{"label":"1","semantic":"digit"}},
		{"id":"b2","side":"right","x":0.2,"y":0,"w":0.1,"h":0.1,"primary":{"label":"2","semantic":"digit"}}
	]}}}}`
	km, err := Load([]byte(doc))
	require.NoError(t, err)
	btns := km.CustomButtonsFor("6x3", 0)
	require.Len(t, btns, 2)
	assert.Equal(t, "b1", btns[0].ID)
	assert.Equal(t, "b2", btns[1].ID)
}
