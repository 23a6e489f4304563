package ports

import (
	"context"
	"io"

	"flowmic/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	Container   string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// AnalysisClient submits audio to the analysis service.
type AnalysisClient interface {
	Submit(ctx context.Context, payload domain.Payload, kind domain.SubmissionKind) (domain.AnalysisResult, error)
}

// ResultBoard is the shared render target for both submission paths.
type ResultBoard interface {
	Reserve() uint64
	Apply(seq uint64, result domain.AnalysisResult) bool
}

// ChartSink accepts the three state series and redraws on Update.
type ChartSink interface {
	SetSeries(series [3]float64)
	Update() error
}

// PreviewPublisher exposes a local file for playback.
type PreviewPublisher interface {
	Publish(path string) (string, error)
	Clear()
}

// Display receives state, status and result updates for the UI.
type Display interface {
	CaptureStateChanged(state domain.CaptureState, controls domain.Controls)
	StatusChanged(status domain.Status)
	ResultRendered(view domain.ResultView)
	PreviewChanged(preview domain.Preview)
}
