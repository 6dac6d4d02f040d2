package replay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glasstokey/glasstokey/internal/core"
	"github.com/glasstokey/glasstokey/internal/dispatch"
	"github.com/glasstokey/glasstokey/internal/engine"
	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/keymap"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	presets := keymap.DefaultPresets()
	left, right := keymap.BuildLayouts(presets["6x3"], nil)
	layouts := map[frame.Side]keymap.KeyLayout{frame.SideLeft: left, frame.SideRight: right}
	km, err := keymap.Load([]byte(`{"version":1,"layouts":{"6x3":{"mappings":{},"custom_buttons":{}}}}`))
	require.NoError(t, err)

	q := dispatch.NewQueue(dispatch.DefaultCapacity)
	return engine.New(core.DefaultConfig("6x3"), km, layouts, 0.05, q, nil)
}

func TestHarnessReplayIsDeterministic(t *testing.T) {
	frames := []FrameRecord{
		{Seq: 1, Contacts: []ContactSample{{ID: 1, X: 0.3, Y: 0.4, Total: 1, Pressure: 0.5, State: 4}}},
		{Seq: 2, Contacts: []ContactSample{{ID: 1, X: 0.31, Y: 0.4, Total: 1, Pressure: 0.5, State: 4}}},
		{Seq: 3, Contacts: nil},
	}
	data := writeFixture(t, 3, frames)

	var first, second bytes.Buffer

	h1 := NewHarness(newTestEngine(t))
	require.NoError(t, h1.Run(bytes.NewReader(data), &first))

	h2 := NewHarness(newTestEngine(t))
	require.NoError(t, h2.Run(bytes.NewReader(data), &second))

	require.Equal(t, first.String(), second.String())
	require.NotEmpty(t, first.String())
}
