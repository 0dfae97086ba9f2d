package practice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaManager_StopAwaitsFinalChunk(t *testing.T) {
	device := newFakeDevice()
	device.recorder.final = []byte("-tail")

	var got []Audio
	m, release := OpenMedia(device, func(ctx context.Context, a Audio) { got = append(got, a) }, discardLogger())
	defer release()

	require.NoError(t, m.StartRecording(context.Background()))
	assert.Equal(t, MediaRecording, m.State())

	device.recorder.emit([]byte("head"))
	require.NoError(t, m.StopRecording(context.Background()))

	require.Len(t, got, 1)
	assert.Equal(t, "head-tail", string(got[0].Data))
	assert.Equal(t, "audio/ogg", got[0].MimeType)
	assert.True(t, device.tracksStopped())
	assert.Equal(t, MediaIdle, m.State())
}

func TestMediaManager_AtMostOneRecording(t *testing.T) {
	device := newFakeDevice()
	m, release := OpenMedia(device, nil, discardLogger())
	defer release()

	require.NoError(t, m.StartRecording(context.Background()))
	assert.ErrorIs(t, m.StartRecording(context.Background()), ErrRecorderBusy)
	assert.Equal(t, 1, device.acquired)
}

func TestMediaManager_StartDisabledWhileTranscribing(t *testing.T) {
	device := newFakeDevice()
	device.recorder.final = []byte("x")

	var m *MediaManager
	var duringTranscription error
	var stateDuring MediaState
	m, release := OpenMedia(device, func(ctx context.Context, a Audio) {
		stateDuring = m.State()
		duringTranscription = m.StartRecording(ctx)
	}, discardLogger())
	defer release()

	require.NoError(t, m.StartRecording(context.Background()))
	require.NoError(t, m.StopRecording(context.Background()))

	assert.Equal(t, MediaTranscribing, stateDuring)
	assert.ErrorIs(t, duringTranscription, ErrRecorderBusy)
	assert.Equal(t, MediaIdle, m.State())
	assert.Equal(t, 1, device.acquired)
}

func TestMediaManager_DeviceDenied(t *testing.T) {
	device := newFakeDevice()
	device.acquireErr = errors.New("permission denied")
	m, release := OpenMedia(device, nil, discardLogger())
	defer release()

	err := m.StartRecording(context.Background())

	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, MediaIdle, m.State())

	device.acquireErr = nil
	assert.NoError(t, m.StartRecording(context.Background()), "manager recovers after a denial")
}

func TestMediaManager_NoDevice(t *testing.T) {
	m, release := OpenMedia(nil, nil, discardLogger())
	defer release()

	assert.ErrorIs(t, m.StartRecording(context.Background()), ErrDeviceUnavailable)
	assert.Equal(t, MediaIdle, m.State())
}

func TestMediaManager_StopWithoutRecording(t *testing.T) {
	m, release := OpenMedia(newFakeDevice(), nil, discardLogger())
	defer release()

	assert.ErrorIs(t, m.StopRecording(context.Background()), ErrNotRecording)
}

func TestMediaManager_RecorderStopFailureReturnsToIdle(t *testing.T) {
	device := newFakeDevice()
	device.recorder.stopErr = errors.New("flush failed")
	called := false
	m, release := OpenMedia(device, func(context.Context, Audio) { called = true }, discardLogger())
	defer release()

	require.NoError(t, m.StartRecording(context.Background()))
	assert.Error(t, m.StopRecording(context.Background()))

	assert.False(t, called)
	assert.True(t, device.tracksStopped())
	assert.Equal(t, MediaIdle, m.State())
}

func TestMediaManager_EmptyRecordingSkipsTranscription(t *testing.T) {
	device := newFakeDevice()
	called := false
	m, release := OpenMedia(device, func(context.Context, Audio) { called = true }, discardLogger())
	defer release()

	require.NoError(t, m.StartRecording(context.Background()))
	require.NoError(t, m.StopRecording(context.Background()))

	assert.False(t, called)
	assert.Equal(t, MediaIdle, m.State())
}

func TestMediaManager_ReleaseMidRecording(t *testing.T) {
	device := newFakeDevice()
	called := false
	m, release := OpenMedia(device, func(context.Context, Audio) { called = true }, discardLogger())

	require.NoError(t, m.StartRecording(context.Background()))
	device.recorder.emit([]byte("partial"))

	release()
	release()

	assert.True(t, device.tracksStopped(), "device tracks must be released")
	assert.Equal(t, 1, device.recorder.stopCount())
	assert.Equal(t, MediaIdle, m.State())
	assert.False(t, called)

	assert.ErrorIs(t, m.StartRecording(context.Background()), ErrMediaClosed)
	assert.ErrorIs(t, m.StopRecording(context.Background()), ErrMediaClosed)
}

func TestMediaManager_ReleaseWhileIdle(t *testing.T) {
	device := newFakeDevice()
	m, release := OpenMedia(device, nil, discardLogger())

	release()

	assert.Equal(t, 0, device.recorder.stopCount())
	assert.ErrorIs(t, m.StartRecording(context.Background()), ErrMediaClosed)
}
