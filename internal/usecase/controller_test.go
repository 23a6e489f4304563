package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"flowmic/internal/domain"
	"flowmic/internal/ports"
	"flowmic/internal/render"
)

func scenarioResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		Transcription: "hello",
		Emotion:       "calm",
		DominantState: "flow",
		MatchedWords: []domain.MatchedWord{
			{Token: "hi", MatchedAnchor: "hello", Similarity: 0.87},
		},
		StatePercentages: domain.StatePercentages{Hypo: 10, Hyper: 5, Flow: 85},
	}
}

func newTestCapture(capture *fakeAudioCapture, client *fakeClient, display *fakeDisplay) (*CaptureController, *render.Board) {
	board := render.NewBoard(display, nil, nil)
	controller := NewCaptureController(capture, client, board, display, nil, CaptureConfig{ContentType: "audio/wav"})
	return controller, board
}

func TestCaptureControllerRecordStopSubmitsChunksInOrder(t *testing.T) {
	t.Parallel()

	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("a"), []byte("b"), []byte("c")}}
	client := &fakeClient{result: scenarioResult()}
	display := &fakeDisplay{}
	controller, board := newTestCapture(&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}}, client, display)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Transcription != "hello" {
		t.Fatalf("unexpected result: %+v", result)
	}

	calls := client.snapshotCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one submission, got %d", len(calls))
	}
	if calls[0].kind != domain.SubmissionCapture || calls[0].name != "recording.wav" || calls[0].contentType != "audio/wav" {
		t.Fatalf("unexpected submission: %+v", calls[0])
	}
	if calls[0].body != "abc" {
		t.Fatalf("expected chunks in capture order, got %q", calls[0].body)
	}
	if audioSession.stopCalls == 0 {
		t.Fatalf("expected capture to be stopped")
	}

	wantStates := []domain.CaptureState{
		domain.CaptureStateAcquiring,
		domain.CaptureStateRecording,
		domain.CaptureStateFinalizing,
		domain.CaptureStateSubmitting,
		domain.CaptureStateDone,
	}
	states := display.snapshotStates()
	if len(states) != len(wantStates) {
		t.Fatalf("unexpected state sequence: %+v", states)
	}
	for i, want := range wantStates {
		if states[i].state != want {
			t.Fatalf("state %d: got %s, want %s", i, states[i].state, want)
		}
		if states[i].controls != domain.ControlsFor(want) {
			t.Fatalf("state %s: unexpected controls %+v", want, states[i].controls)
		}
	}

	reasons := display.snapshotReasons()
	wantReasons := []domain.StatusReason{
		domain.StatusRecordingPending,
		domain.StatusRecording,
		domain.StatusProcessing,
		domain.StatusDone,
	}
	if len(reasons) != len(wantReasons) {
		t.Fatalf("unexpected status sequence: %v", reasons)
	}
	for i, want := range wantReasons {
		if reasons[i] != want {
			t.Fatalf("status %d: got %s, want %s", i, reasons[i], want)
		}
	}

	view := board.View()
	if view.Transcription != "hello" || len(view.Matches) != 1 || view.Matches[0] != "hi → hello (sim: 0.87)" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Series != [3]float64{10, 5, 85} {
		t.Fatalf("unexpected series: %v", view.Series)
	}

	status := controller.Status()
	if status.State != domain.CaptureStateIdle || !status.Controls.StartEnabled || status.Controls.StopEnabled || status.Active {
		t.Fatalf("expected idle-ready status, got %+v", status)
	}
}

func TestCaptureControllerStopWhileIdleIsNoop(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	display := &fakeDisplay{}
	controller, _ := newTestCapture(&fakeAudioCapture{}, client, display)

	_, err := controller.Stop(context.Background())
	if !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
	if len(client.snapshotCalls()) != 0 {
		t.Fatalf("expected no submission")
	}
	if len(display.snapshotStates()) != 0 || len(display.snapshotReasons()) != 0 {
		t.Fatalf("expected no display updates")
	}
	if controller.Status().State != domain.CaptureStateIdle {
		t.Fatalf("expected idle state")
	}
}

func TestCaptureControllerStartWhileRecordingIsRejected(t *testing.T) {
	t.Parallel()

	audioSession := newHeldAudioSession([]byte("a"))
	capture := &fakeAudioCapture{sessions: []ports.AudioSession{audioSession}}
	controller, _ := newTestCapture(capture, &fakeClient{}, &fakeDisplay{})

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if capture.snapshotCalls() != 1 {
		t.Fatalf("expected one device acquisition, got %d", capture.snapshotCalls())
	}

	status := controller.Status()
	if status.State != domain.CaptureStateRecording || status.Controls.StartEnabled || !status.Controls.StopEnabled {
		t.Fatalf("unexpected recording status: %+v", status)
	}

	if err := controller.Discard(); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
}

func TestCaptureControllerPermissionDenied(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	display := &fakeDisplay{}
	controller, _ := newTestCapture(&fakeAudioCapture{err: errors.New("device busy")}, client, display)

	err := controller.Start(context.Background())
	if domain.KindOf(err) != domain.ErrorKindPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if len(client.snapshotCalls()) != 0 {
		t.Fatalf("permission failure must not reach the network")
	}

	states := display.snapshotStates()
	last := states[len(states)-1]
	if last.state != domain.CaptureStateError || !last.controls.StartEnabled || last.controls.StopEnabled {
		t.Fatalf("expected error state with start enabled, got %+v", last)
	}
	statuses := display.snapshotStatuses()
	if got := statuses[len(statuses)-1]; got.Reason != domain.StatusFailed || got.Kind != domain.ErrorKindPermissionDenied {
		t.Fatalf("unexpected final status: %+v", got)
	}
	if controller.Status().State != domain.CaptureStateIdle {
		t.Fatalf("expected controller back in idle")
	}
}

func TestCaptureControllerEmptyRecordingSkipsSubmission(t *testing.T) {
	t.Parallel()

	client := &fakeClient{result: scenarioResult()}
	display := &fakeDisplay{}
	controller, _ := newTestCapture(&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{}}}, client, display)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, err := controller.Stop(context.Background())
	if !errors.Is(err, ErrNoAudioCaptured) {
		t.Fatalf("expected ErrNoAudioCaptured, got %v", err)
	}
	if len(client.snapshotCalls()) != 0 {
		t.Fatalf("empty recording must not be submitted")
	}

	reasons := display.snapshotReasons()
	if reasons[len(reasons)-1] != domain.StatusNoAudio {
		t.Fatalf("expected no_audio status, got %s", reasons[len(reasons)-1])
	}
	if len(display.snapshotViews()) != 0 {
		t.Fatalf("expected no render")
	}
	if controller.Status().State != domain.CaptureStateIdle {
		t.Fatalf("expected idle state")
	}
}

func TestCaptureControllerServerErrorKeepsPreviousResult(t *testing.T) {
	t.Parallel()

	first := &fakeAudioSession{chunks: [][]byte{[]byte("one")}}
	second := &fakeAudioSession{chunks: [][]byte{[]byte("two")}}
	client := &fakeClient{result: scenarioResult()}
	display := &fakeDisplay{}
	controller, board := newTestCapture(&fakeAudioCapture{sessions: []ports.AudioSession{first, second}}, client, display)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}

	client.setErr(&domain.SubmissionError{Kind: domain.ErrorKindServerError, StatusCode: 500, Err: errors.New("internal")})
	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	_, err := controller.Stop(context.Background())
	if domain.KindOf(err) != domain.ErrorKindServerError {
		t.Fatalf("expected server error, got %v", err)
	}

	if got := board.View().Transcription; got != "hello" {
		t.Fatalf("failure overwrote previous result: %q", got)
	}
	if len(display.snapshotViews()) != 1 {
		t.Fatalf("expected a single render, got %d", len(display.snapshotViews()))
	}

	states := display.snapshotStates()
	last := states[len(states)-1]
	if last.state != domain.CaptureStateError || last.controls != (domain.Controls{StartEnabled: true}) {
		t.Fatalf("expected re-attemptable controls, got %+v", last)
	}
	statuses := display.snapshotStatuses()
	if got := statuses[len(statuses)-1]; got.Kind != domain.ErrorKindServerError || got.Origin != domain.SubmissionCapture {
		t.Fatalf("unexpected failure status: %+v", got)
	}
	if !controller.Status().Controls.StartEnabled {
		t.Fatalf("expected start to be enabled after failure")
	}
}

func TestCaptureControllerDiscard(t *testing.T) {
	t.Parallel()

	audioSession := newHeldAudioSession([]byte("a"), []byte("b"))
	client := &fakeClient{}
	display := &fakeDisplay{}
	controller, _ := newTestCapture(&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}}, client, display)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Discard(); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
	if len(client.snapshotCalls()) != 0 {
		t.Fatalf("discard must not submit")
	}
	reasons := display.snapshotReasons()
	if reasons[len(reasons)-1] != domain.StatusDiscarded {
		t.Fatalf("expected discarded status, got %s", reasons[len(reasons)-1])
	}
	if err := controller.Discard(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording on second discard, got %v", err)
	}
}

func TestCaptureControllerStopDuringSubmissionIsNoop(t *testing.T) {
	t.Parallel()

	client := &fakeClient{result: scenarioResult(), gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	controller, _ := newTestCapture(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{chunks: [][]byte{[]byte("a")}}}},
		client,
		&fakeDisplay{},
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := controller.Stop(context.Background())
		done <- err
	}()
	<-client.entered

	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording while submitting, got %v", err)
	}
	if err := controller.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected start to be rejected while submitting, got %v", err)
	}
	status := controller.Status()
	if status.State != domain.CaptureStateSubmitting || status.Controls != (domain.Controls{}) {
		t.Fatalf("unexpected submitting status: %+v", status)
	}

	close(client.gate)
	if err := <-done; err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if len(client.snapshotCalls()) != 1 {
		t.Fatalf("expected a single submission")
	}
}

func TestCaptureControllerSubmissionIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	client := &fakeClient{result: scenarioResult()}
	controller, _ := newTestCapture(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{chunks: [][]byte{[]byte("a")}}}},
		client,
		&fakeDisplay{},
	)

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := controller.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if calls := client.snapshotCalls(); len(calls) != 1 || calls[0].ctxErr != nil {
		t.Fatalf("expected submission with a live context, got %+v", calls)
	}
}

func TestCaptureControllerRejectsStartUntilTerminalEventsAreOut(t *testing.T) {
	t.Parallel()

	display := &startOnTerminalDisplay{}
	board := render.NewBoard(display, nil, nil)
	controller := NewCaptureController(
		&fakeAudioCapture{sessions: []ports.AudioSession{
			&fakeAudioSession{chunks: [][]byte{[]byte("a")}},
			newHeldAudioSession([]byte("b")),
		}},
		&fakeClient{result: scenarioResult()},
		board, display, nil, CaptureConfig{},
	)
	display.controller = controller

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if !errors.Is(display.startErr, ErrSessionActive) {
		t.Fatalf("expected start during terminal events to be rejected, got %v", display.startErr)
	}
	if display.statusDuringTerminal.Controls.StartEnabled {
		t.Fatalf("expected start disabled while terminal events are emitted: %+v", display.statusDuringTerminal)
	}

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("start after terminal events failed: %v", err)
	}
	states := display.snapshotStates()
	if states[len(states)-2].state != domain.CaptureStateAcquiring || states[len(states)-3].state != domain.CaptureStateDone {
		t.Fatalf("expected done before the next acquiring, got %+v", states)
	}
	if err := controller.Discard(); err != nil {
		t.Fatalf("discard failed: %v", err)
	}
}

// startOnTerminalDisplay presses start as soon as a terminal status arrives.
type startOnTerminalDisplay struct {
	fakeDisplay
	controller           *CaptureController
	startErr             error
	statusDuringTerminal domain.CaptureStatus
}

func (d *startOnTerminalDisplay) StatusChanged(status domain.Status) {
	d.fakeDisplay.StatusChanged(status)
	if status.Reason == domain.StatusDone && d.controller != nil && d.startErr == nil {
		d.statusDuringTerminal = d.controller.Status()
		d.startErr = d.controller.Start(context.Background())
	}
}

func TestChunkArrivedDropsForeignAndSealedSessions(t *testing.T) {
	t.Parallel()

	controller, _ := newTestCapture(&fakeAudioCapture{}, &fakeClient{}, &fakeDisplay{})
	current := &recordingSession{}
	controller.current = current
	controller.state = domain.CaptureStateRecording

	if !controller.chunkArrived(current, []byte("x")) {
		t.Fatalf("expected chunk for current session to be accepted")
	}
	if controller.chunkArrived(&recordingSession{}, []byte("y")) {
		t.Fatalf("expected chunk for foreign session to be dropped")
	}
	if got := string(current.take()); got != "x" {
		t.Fatalf("unexpected buffer: %q", got)
	}
	if current.chunks != nil {
		t.Fatalf("expected buffer to be cleared")
	}
	if controller.chunkArrived(current, []byte("z")) {
		t.Fatalf("expected chunk after finalization to be dropped")
	}
}

func TestLateCaptureResultDoesNotOverwriteNewerUpload(t *testing.T) {
	t.Parallel()

	display := &fakeDisplay{}
	board := render.NewBoard(display, nil, nil)

	captureClient := &fakeClient{
		result:  domain.AnalysisResult{Transcription: "from capture"},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	capture := NewCaptureController(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{chunks: [][]byte{[]byte("a")}}}},
		captureClient, board, display, nil, CaptureConfig{},
	)
	upload := NewUploadController(&fakeClient{result: domain.AnalysisResult{Transcription: "from upload"}}, board, display, nil, nil)
	upload.Select(writeAudioFile(t, "clip.wav"))

	if err := capture.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := capture.Stop(context.Background())
		done <- err
	}()
	<-captureClient.entered

	if _, err := upload.Submit(context.Background()); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	close(captureClient.gate)
	if err := <-done; err != nil {
		t.Fatalf("capture stop failed: %v", err)
	}

	if got := board.View().Transcription; got != "from upload" {
		t.Fatalf("late capture result overwrote newer upload: %q", got)
	}
	reasons := display.snapshotReasons()
	if reasons[len(reasons)-1] != domain.StatusSuperseded {
		t.Fatalf("expected superseded status, got %s", reasons[len(reasons)-1])
	}
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

func (f *fakeAudioCapture) snapshotCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAudioSession yields its chunks, then EOF. With hold set, it blocks after
// the last chunk until Stop is called, like a live device.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error

	hold     chan struct{}
	holdOnce sync.Once
}

func newHeldAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, hold: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	hold := f.hold
	f.mu.Unlock()

	if hold != nil {
		<-hold
	}
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.hold != nil {
		f.holdOnce.Do(func() { close(f.hold) })
	}
	return f.stopErr
}

type submitCall struct {
	kind        domain.SubmissionKind
	name        string
	contentType string
	body        string
	ctxErr      error
}

type fakeClient struct {
	mu     sync.Mutex
	result domain.AnalysisResult
	err    error
	calls  []submitCall

	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeClient) Submit(ctx context.Context, payload domain.Payload, kind domain.SubmissionKind) (domain.AnalysisResult, error) {
	body, _ := io.ReadAll(payload.Body)

	f.mu.Lock()
	f.calls = append(f.calls, submitCall{
		kind:        kind,
		name:        payload.Name,
		contentType: payload.ContentType,
		body:        string(body),
		ctxErr:      ctx.Err(),
	})
	result, err := f.result, f.err
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-time.After(5 * time.Second):
			return domain.AnalysisResult{}, errors.New("gate never opened")
		}
	}
	return result, err
}

func (f *fakeClient) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeClient) snapshotCalls() []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]submitCall, len(f.calls))
	copy(out, f.calls)
	return out
}

type stateEvent struct {
	state    domain.CaptureState
	controls domain.Controls
}

type fakeDisplay struct {
	mu sync.Mutex

	states   []stateEvent
	statuses []domain.Status
	views    []domain.ResultView
	previews []domain.Preview
}

func (f *fakeDisplay) CaptureStateChanged(state domain.CaptureState, controls domain.Controls) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, controls: controls})
}

func (f *fakeDisplay) StatusChanged(status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeDisplay) ResultRendered(view domain.ResultView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
}

func (f *fakeDisplay) PreviewChanged(preview domain.Preview) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, preview)
}

func (f *fakeDisplay) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeDisplay) snapshotStatuses() []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Status, len(f.statuses))
	copy(out, f.statuses)
	return out
}

func (f *fakeDisplay) snapshotReasons() []domain.StatusReason {
	statuses := f.snapshotStatuses()
	out := make([]domain.StatusReason, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.Reason)
	}
	return out
}

func (f *fakeDisplay) snapshotViews() []domain.ResultView {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ResultView, len(f.views))
	copy(out, f.views)
	return out
}

func (f *fakeDisplay) snapshotPreviews() []domain.Preview {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Preview, len(f.previews))
	copy(out, f.previews)
	return out
}
