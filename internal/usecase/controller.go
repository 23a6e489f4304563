package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"flowmic/internal/domain"
	"flowmic/internal/ports"
)

var (
	ErrSessionActive   = errors.New("a recording session is already active")
	ErrNotRecording    = errors.New("no recording in progress")
	ErrNoAudioCaptured = errors.New("no audio captured")
)

// CaptureConfig controls recording behavior.
type CaptureConfig struct {
	Audio       ports.AudioConfig
	ChunkSize   int
	PayloadName string
	ContentType string
}

// CaptureController runs the recording state machine: acquire the
// microphone, buffer chunks, finalize on stop and submit for analysis.
type CaptureController struct {
	audio   ports.AudioCapture
	client  ports.AnalysisClient
	board   ports.ResultBoard
	display ports.Display
	logger  *slog.Logger
	cfg     CaptureConfig

	mu      sync.Mutex
	state   domain.CaptureState
	current *recordingSession

	// settling is set while terminal events are published; Start is rejected.
	settling bool
}

func NewCaptureController(
	audio ports.AudioCapture,
	client ports.AnalysisClient,
	board ports.ResultBoard,
	display ports.Display,
	logger *slog.Logger,
	cfg CaptureConfig,
) *CaptureController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.PayloadName == "" {
		cfg.PayloadName = "recording.wav"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureController{
		audio:   audio,
		client:  client,
		board:   board,
		display: display,
		logger:  logger,
		cfg:     cfg,
		state:   domain.CaptureStateIdle,
	}
}

// Start acquires the microphone and begins buffering chunks. It is rejected
// while any session is active.
func (c *CaptureController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.settling || !domain.ControlsFor(c.state).StartEnabled {
		c.mu.Unlock()
		return ErrSessionActive
	}
	session := &recordingSession{id: uuid.NewString(), pumpDone: make(chan struct{})}
	c.current = session
	c.state = domain.CaptureStateAcquiring
	c.mu.Unlock()

	c.emitState(domain.CaptureStateAcquiring)
	c.display.StatusChanged(domain.Status{Reason: domain.StatusRecordingPending, Origin: domain.SubmissionCapture})

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		cancel()
		c.logger.Warn("microphone unavailable", "session", session.id, "error", err)
		subErr := domain.NewSubmissionError(domain.ErrorKindPermissionDenied, err)
		c.finish(session, domain.CaptureStateError, failedStatus(subErr))
		return subErr
	}

	c.mu.Lock()
	session.audio = audioSession
	session.cancel = cancel
	c.state = domain.CaptureStateRecording
	c.mu.Unlock()

	go pumpAudioChunks(audioSession, c.cfg.ChunkSize, func(chunk []byte) {
		c.chunkArrived(session, chunk)
	}, c.logger, session.pumpDone)

	c.logger.Info("recording started", "session", session.id)
	c.emitState(domain.CaptureStateRecording)
	c.display.StatusChanged(domain.Status{Reason: domain.StatusRecording, Origin: domain.SubmissionCapture})
	return nil
}

// chunkArrived appends a captured chunk in arrival order. Chunks for a session
// that is no longer current, or already finalized, are dropped.
func (c *CaptureController) chunkArrived(session *recordingSession, chunk []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != session || session.sealed {
		return false
	}
	if c.state != domain.CaptureStateRecording && c.state != domain.CaptureStateFinalizing {
		return false
	}
	session.chunks = append(session.chunks, chunk)
	return true
}

// Stop ends chunk collection, finalizes the buffer and submits it. Outside
// the recording state it is a no-op returning ErrNotRecording.
func (c *CaptureController) Stop(ctx context.Context) (domain.AnalysisResult, error) {
	c.mu.Lock()
	if c.state != domain.CaptureStateRecording {
		c.mu.Unlock()
		return domain.AnalysisResult{}, ErrNotRecording
	}
	session := c.current
	c.state = domain.CaptureStateFinalizing
	c.mu.Unlock()

	c.emitState(domain.CaptureStateFinalizing)
	c.endCapture(session)

	c.mu.Lock()
	body := session.take()
	c.mu.Unlock()

	if len(body) == 0 {
		c.logger.Warn("recording stopped without audio; skipping submission", "session", session.id)
		c.finish(session, domain.CaptureStateIdle, domain.Status{Reason: domain.StatusNoAudio, Origin: domain.SubmissionCapture})
		return domain.AnalysisResult{}, ErrNoAudioCaptured
	}

	c.setState(domain.CaptureStateSubmitting)
	c.emitState(domain.CaptureStateSubmitting)
	c.display.StatusChanged(domain.Status{Reason: domain.StatusProcessing, Origin: domain.SubmissionCapture})

	seq := c.board.Reserve()
	payload := domain.Payload{
		Name:        c.cfg.PayloadName,
		ContentType: c.cfg.ContentType,
		Body:        bytes.NewReader(body),
	}
	c.logger.Info("submitting recording", "session", session.id, "bytes", len(body), "ticket", seq)

	// Once submitting, the request runs to completion.
	result, err := c.client.Submit(context.WithoutCancel(ctx), payload, domain.SubmissionCapture)
	if err != nil {
		c.logger.Warn("recording analysis failed", "session", session.id, "error", err)
		c.finish(session, domain.CaptureStateError, failedStatus(err))
		return domain.AnalysisResult{}, fmt.Errorf("analyze recording: %w", err)
	}

	reason := domain.StatusDone
	if !c.board.Apply(seq, result) {
		reason = domain.StatusSuperseded
	}
	c.finish(session, domain.CaptureStateDone, domain.Status{Reason: reason, Origin: domain.SubmissionCapture})
	return result, nil
}

// Discard ends a recording without submitting it.
func (c *CaptureController) Discard() error {
	c.mu.Lock()
	if c.state != domain.CaptureStateRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	session := c.current
	c.state = domain.CaptureStateFinalizing
	c.mu.Unlock()

	c.endCapture(session)

	c.mu.Lock()
	_ = session.take()
	c.mu.Unlock()

	c.logger.Info("recording discarded", "session", session.id)
	c.finish(session, domain.CaptureStateIdle, domain.Status{Reason: domain.StatusDiscarded, Origin: domain.SubmissionCapture})
	return nil
}

// Status returns the capture state and the controls it allows.
func (c *CaptureController) Status() domain.CaptureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	controls := domain.ControlsFor(c.state)
	if c.settling {
		controls.StartEnabled = false
	}
	return domain.CaptureStatus{
		State:    c.state,
		Controls: controls,
		Active:   !controls.StartEnabled,
	}
}

// endCapture stops the device, drains the pump and releases the session.
func (c *CaptureController) endCapture(session *recordingSession) {
	if err := session.audio.Stop(); err != nil {
		c.logger.Warn("audio capture did not stop cleanly", "session", session.id, "error", err)
	}
	<-session.pumpDone
	if err := session.audio.Close(); err != nil {
		c.logger.Debug("audio capture close", "session", session.id, "error", err)
	}
	session.cancel()
}

// finish publishes the terminal state and returns the controller to idle.
// Start stays rejected until the terminal events have been emitted.
func (c *CaptureController) finish(session *recordingSession, terminal domain.CaptureState, status domain.Status) {
	c.mu.Lock()
	if c.current == session {
		c.current = nil
	}
	c.state = terminal
	c.settling = true
	c.mu.Unlock()

	c.emitState(terminal)
	c.display.StatusChanged(status)

	c.mu.Lock()
	c.state = domain.CaptureStateIdle
	c.settling = false
	c.mu.Unlock()
}

func (c *CaptureController) setState(state domain.CaptureState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *CaptureController) emitState(state domain.CaptureState) {
	c.display.CaptureStateChanged(state, domain.ControlsFor(state))
}

func failedStatus(err error) domain.Status {
	status := domain.Status{
		Reason: domain.StatusFailed,
		Kind:   domain.KindOf(err),
		Origin: domain.SubmissionCapture,
	}
	if err != nil {
		status.Detail = err.Error()
	}
	return status
}
