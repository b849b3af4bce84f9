// Package portaudio plays a SampleSource through the default PortAudio
// output device.
package portaudio

import (
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/cbegin/beatgrid-go/internal/audio"
)

// DefaultFramesPerBuffer is about 5 ms at 48 kHz.
const DefaultFramesPerBuffer = 256

// Stream is an audio.Device. It deinterleaves the source's stereo frames
// into PortAudio's per-channel buffers.
type Stream struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	source  audio.SampleSource
	buf     []float32
	started bool
	closed  bool
}

// Open initialises PortAudio and opens a stereo output stream. The stream
// is stopped until Resume.
func Open(sampleRate int, source audio.SampleSource, framesPerBuffer int) (*Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	s := &Stream{source: source}
	stream, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), framesPerBuffer, s.process)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	s.stream = stream
	return s, nil
}

func (s *Stream) process(out [][]float32) {
	frames := len(out[0])
	if cap(s.buf) < frames*2 {
		s.buf = make([]float32, frames*2)
	}
	s.buf = s.buf[:frames*2]
	s.source.Process(s.buf)
	for i := 0; i < frames; i++ {
		out[0][i] = s.buf[i*2]
		out[1][i] = s.buf[i*2+1]
	}
}

var _ audio.Device = (*Stream)(nil)

func (s *Stream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.started {
		_ = s.stream.Stop()
	}
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}
