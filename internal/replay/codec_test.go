package replay

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, framesCaptured int, frames []FrameRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 1_000_000_000)
	require.NoError(t, err)

	require.NoError(t, w.WriteMeta(RecordHeader{SideHint: 2}, MetaPayload{
		Type: "capture", Schema: "atpcap01", FramesCaptured: framesCaptured,
	}))
	for _, fr := range frames {
		require.NoError(t, w.WriteFrame(RecordHeader{ArrivalTicks: int64(fr.Seq) * 1000, SideHint: 2}, fr))
	}
	return buf.Bytes()
}

func TestWriterReaderRoundTrip(t *testing.T) {
	frames := []FrameRecord{
		{Seq: 1, TimestampSec: 0.1, DeviceNumericID: 7, Contacts: []ContactSample{
			{ID: 1, X: 0.25, Y: 0.5, Pressure: 0.8, State: 4},
		}},
		{Seq: 2, TimestampSec: 0.2, DeviceNumericID: 7, Contacts: nil},
	}
	data := writeFixture(t, 2, frames)

	rd, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, WriteVersion, rd.Version())
	assert.EqualValues(t, 1_000_000_000, rd.TickFrequency())

	rec, err := rd.Next()
	require.NoError(t, err)
	require.NotNil(t, rec.Meta)
	assert.Equal(t, 2, rec.Meta.FramesCaptured)

	rec, err = rd.Next()
	require.NoError(t, err)
	require.NotNil(t, rec.Frame)
	assert.Equal(t, uint64(1), rec.Frame.Seq)
	require.Len(t, rec.Frame.Contacts, 1)
	assert.Equal(t, float32(0.25), rec.Frame.Contacts[0].X)

	rec, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Frame.Seq)
	assert.Empty(t, rec.Frame.Contacts)

	_, err = rd.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderRejectsBadMagic(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not-a-valid-header-at-all")))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestReaderRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.Write([]byte{99, 0, 0, 0}) // version 99
	buf.Write(make([]byte, 8))     // tick frequency
	_, err := NewReader(&buf)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestReaderRejectsOutOfOrderSequence(t *testing.T) {
	frames := []FrameRecord{
		{Seq: 1, Contacts: nil},
		{Seq: 3, Contacts: nil}, // should be 2
	}
	data := writeFixture(t, 2, frames)

	rd, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = rd.Next() // meta
	require.NoError(t, err)
	_, err = rd.Next() // seq 1
	require.NoError(t, err)
	_, err = rd.Next() // seq 3, expected 2
	assert.True(t, errors.Is(err, ErrInvalidSequence))
}

func TestReaderRejectsFrameCountMismatch(t *testing.T) {
	frames := []FrameRecord{{Seq: 1, Contacts: nil}}
	data := writeFixture(t, 5, frames) // claims 5, only 1 written

	rd, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = rd.Next()
	require.NoError(t, err)
	_, err = rd.Next()
	require.NoError(t, err)
	_, err = rd.Next()
	assert.ErrorIs(t, err, ErrMetaFrameCountMismatch)
}

func TestWriterRejectsInvalidContactState(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, 1)
	require.NoError(t, err)
	err = w.WriteFrame(RecordHeader{}, FrameRecord{Seq: 1, Contacts: []ContactSample{{State: 9}}})
	assert.ErrorIs(t, err, ErrInvalidStateCode)
}
