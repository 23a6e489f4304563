package usecase

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"flowmic/internal/ports"
)

func pumpAudioChunks(
	audio ports.AudioSession,
	chunkSize int,
	deliver func(chunk []byte),
	logger *slog.Logger,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}
	if logger == nil {
		logger = slog.Default()
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			deliver(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
				logger.Warn("audio capture read failed", "error", err)
			}
			return
		}
	}
}
