package practice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type MediaState string

const (
	MediaIdle         MediaState = "idle"
	MediaRecording    MediaState = "recording"
	MediaTranscribing MediaState = "transcribing"
)

// Track is one live device track, such as a microphone input.
type Track interface {
	Stop()
}

type Stream interface {
	Tracks() []Track
}

// Recorder buffers audio from a Stream. Stop must not return until the
// final chunk has been delivered to the onChunk callback, and may be called
// more than once.
type Recorder interface {
	Start(onChunk func([]byte)) error
	Stop(ctx context.Context) error
	MimeType() string
}

type Device interface {
	Acquire(ctx context.Context) (Stream, error)
	NewRecorder(stream Stream) (Recorder, error)
}

// Release frees every device resource held by a MediaManager. It is
// synchronous and safe to call more than once.
type Release func()

// recording is the live stream, its recorder and the chunk buffer.
type recording struct {
	stream   Stream
	recorder Recorder

	mu     sync.Mutex
	chunks [][]byte

	tracksOnce sync.Once
}

func (r *recording) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	cp := append([]byte(nil), chunk...)
	r.mu.Lock()
	r.chunks = append(r.chunks, cp)
	r.mu.Unlock()
}

func (r *recording) audio() Audio {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Audio{Data: bytes.Join(r.chunks, nil), MimeType: r.recorder.MimeType()}
}

func (r *recording) stopTracks() {
	r.tracksOnce.Do(func() {
		for _, t := range r.stream.Tracks() {
			t.Stop()
		}
	})
}

// MediaManager runs the Idle -> Recording -> Transcribing -> Idle cycle
// and guarantees at most one live recording.
type MediaManager struct {
	device  Device
	onAudio func(ctx context.Context, audio Audio)
	logger  *slog.Logger

	mu        sync.Mutex
	state     MediaState
	acquiring bool
	active    *recording
	closed    bool
}

// OpenMedia creates a manager whose resources are freed by the returned Release.
func OpenMedia(device Device, onAudio func(ctx context.Context, audio Audio), logger *slog.Logger) (*MediaManager, Release) {
	m := &MediaManager{
		device:  device,
		onAudio: onAudio,
		logger:  logger,
		state:   MediaIdle,
	}
	return m, m.release
}

func (m *MediaManager) State() MediaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MediaManager) StartRecording(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMediaClosed
	}
	if m.state != MediaIdle || m.acquiring {
		m.mu.Unlock()
		return ErrRecorderBusy
	}
	if m.device == nil {
		m.mu.Unlock()
		m.logger.Warn("Microphone requested without a device")
		return ErrDeviceUnavailable
	}
	m.acquiring = true
	m.mu.Unlock()

	rec, err := m.begin(ctx)

	m.mu.Lock()
	m.acquiring = false
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("Failed to start recording", "error", err)
		return err
	}
	if m.closed {
		m.mu.Unlock()
		m.abort(rec)
		return ErrMediaClosed
	}
	m.active = rec
	m.state = MediaRecording
	m.mu.Unlock()

	m.logger.Debug("Recording started")
	return nil
}

func (m *MediaManager) begin(ctx context.Context) (*recording, error) {
	stream, err := m.device.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	rec := &recording{stream: stream}

	recorder, err := m.device.NewRecorder(stream)
	if err != nil {
		rec.stopTracks()
		return nil, fmt.Errorf("%w: failed to create recorder: %v", ErrDeviceUnavailable, err)
	}
	rec.recorder = recorder

	if err := recorder.Start(rec.append); err != nil {
		rec.stopTracks()
		return nil, fmt.Errorf("%w: failed to start recorder: %v", ErrDeviceUnavailable, err)
	}
	return rec, nil
}

// StopRecording awaits the recorder's final chunk, frees the device, and hands
// the assembled audio to the transcription callback. The manager is Idle again
// when it returns, whatever the outcome.
func (m *MediaManager) StopRecording(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMediaClosed
	}
	if m.state != MediaRecording || m.active == nil {
		m.mu.Unlock()
		return ErrNotRecording
	}
	rec := m.active
	m.state = MediaTranscribing
	m.mu.Unlock()

	defer m.settle(rec)

	stopErr := rec.recorder.Stop(ctx)
	rec.stopTracks()
	if stopErr != nil {
		m.logger.Warn("Recorder did not stop cleanly", "error", stopErr)
		return fmt.Errorf("failed to stop recorder: %w", stopErr)
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrMediaClosed
	}

	audio := rec.audio()
	if len(audio.Data) == 0 {
		m.logger.Info("Recording produced no audio")
		return nil
	}

	if m.onAudio != nil {
		m.onAudio(ctx, audio)
	}
	return nil
}

func (m *MediaManager) settle(rec *recording) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == rec {
		m.active = nil
	}
	m.state = MediaIdle
}

func (m *MediaManager) release() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	rec := m.active
	m.active = nil
	m.state = MediaIdle
	m.mu.Unlock()

	if rec != nil {
		m.abort(rec)
		m.logger.Info("Released live recording on teardown")
	}
}

// abort frees the device first, then gives the recorder a short window to stop.
func (m *MediaManager) abort(rec *recording) {
	rec.stopTracks()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.recorder.Stop(ctx); err != nil {
		m.logger.Debug("Recorder stop after release", "error", err)
	}
}
