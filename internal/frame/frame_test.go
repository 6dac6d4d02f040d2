package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseValid(t *testing.T) {
	assert.True(t, PhaseLeaving.Valid())
	assert.False(t, Phase(200).Valid())
}

func TestContactFlags(t *testing.T) {
	c := Contact{Flags: FlagTip | FlagConfidence}
	assert.True(t, c.Tip())
	assert.True(t, c.Confident())

	c2 := Contact{Flags: FlagConfidence}
	assert.False(t, c2.Tip())
}

func TestNormXY(t *testing.T) {
	assert.Equal(t, 0.0, NormX(0, 0))
	assert.Equal(t, 0.5, NormX(50, 100))
	assert.Equal(t, 0.25, NormY(25, 100))
}

func TestFrameActiveClampsToMaxContacts(t *testing.T) {
	var f Frame
	f.ContactCount = MaxContacts + 3
	assert.Len(t, f.Active(), MaxContacts)
	assert.Equal(t, 3, f.Overflowed())
}

func TestFrameActiveNegativeCount(t *testing.T) {
	var f Frame
	f.ContactCount = -1
	assert.Len(t, f.Active(), 0)
}

func TestFrameOverflowedZeroWhenUnderCapacity(t *testing.T) {
	var f Frame
	f.ContactCount = 2
	assert.Equal(t, 0, f.Overflowed())
}
