package usecase

import (
	"bytes"

	"flowmic/internal/ports"
)

type recordingSession struct {
	id     string
	cancel func()
	audio  ports.AudioSession

	// guarded by CaptureController.mu
	chunks [][]byte
	sealed bool

	pumpDone chan struct{}
}

// take concatenates the buffered chunks into one payload body and clears the
// buffer. Chunks arriving afterwards are dropped.
func (s *recordingSession) take() []byte {
	s.sealed = true
	joined := bytes.Join(s.chunks, nil)
	s.chunks = nil
	return joined
}
