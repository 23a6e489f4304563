package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"flowmic/internal/bootstrap"
	"flowmic/internal/domain"
	"flowmic/internal/preview"
	"flowmic/internal/presenter"
	"flowmic/internal/render"
	"flowmic/internal/usecase"
)

const (
	eventState   = "flowmic:state"
	eventStatus  = "flowmic:status"
	eventResult  = "flowmic:result"
	eventPreview = "flowmic:preview"
	eventChart   = "flowmic:chart"
)

type (
	emitFunc       func(ctx context.Context, event string, data ...interface{})
	fileDialogFunc func(ctx context.Context, opts runtime.OpenDialogOptions) (string, error)
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	emit       emitFunc
	openDialog fileDialogFunc
	previews   *preview.Registry

	services bootstrap.Services
	capture  *usecase.CaptureController
	upload   *usecase.UploadController
	board    *render.Board
	bootErr  error
}

func NewApp() *App {
	return &App{
		emit:       runtime.EventsEmit,
		openDialog: runtime.OpenFileDialog,
		previews:   preview.NewRegistry(preview.DefaultPrefix),
	}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a.previews, a.chartDrawn)
	if err != nil {
		a.bootErr = err
		a.StatusChanged(domain.Status{Reason: domain.StatusFailed, Detail: fmt.Sprintf("startup failed: %v", err)})
		return
	}

	a.services = services
	a.capture = services.Capture
	a.upload = services.Upload
	a.board = services.Board

	a.CaptureStateChanged(domain.CaptureStateIdle, domain.ControlsFor(domain.CaptureStateIdle))
	a.StatusChanged(domain.Status{Reason: domain.StatusReady})
	a.ResultRendered(a.board.View())
	if err := services.Chart.Update(); err != nil {
		services.Logger.Warn("initial chart draw failed", "error", err)
	}
}

func (a *App) shutdown(_ context.Context) {
	if a.capture != nil {
		if err := a.capture.Discard(); err != nil && !errors.Is(err, usecase.ErrNotRecording) {
			a.services.Logger.Warn("discard on shutdown failed", "error", err)
		}
	}
	_ = a.services.Close()
}

// StartRecording acquires the microphone and starts buffering audio.
func (a *App) StartRecording() (domain.CaptureStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.CaptureStatus{}, err
	}
	if err := a.capture.Start(a.ctx); err != nil {
		return a.capture.Status(), err
	}
	return a.capture.Status(), nil
}

// StopRecording ends the recording and submits it for analysis. Calling it
// while not recording does nothing.
func (a *App) StopRecording() (domain.ResultView, error) {
	if err := a.requireReady(); err != nil {
		return domain.ResultView{}, err
	}
	_, err := a.capture.Stop(a.ctx)
	if err != nil && !errors.Is(err, usecase.ErrNotRecording) && !errors.Is(err, usecase.ErrNoAudioCaptured) {
		return a.board.View(), err
	}
	return a.board.View(), nil
}

// DiscardRecording drops an in-progress recording without submitting it.
func (a *App) DiscardRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.capture.Discard(); err != nil && !errors.Is(err, usecase.ErrNotRecording) {
		return err
	}
	return nil
}

// ChooseFile opens the native file dialog and selects the chosen file.
// Cancelling the dialog keeps the current selection.
func (a *App) ChooseFile() (domain.Preview, error) {
	if err := a.requireReady(); err != nil {
		return domain.Preview{}, err
	}
	path, err := a.openDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Choose an audio file",
		Filters: []runtime.FileFilter{
			{DisplayName: "Audio", Pattern: "*.wav;*.mp3;*.ogg;*.opus;*.webm;*.flac;*.m4a"},
			{DisplayName: "All files", Pattern: "*"},
		},
	})
	if err != nil {
		return domain.Preview{}, err
	}
	if path == "" {
		return a.currentPreview(), nil
	}
	return a.upload.Select(path), nil
}

// SelectFile selects path for upload. An empty path clears the selection.
func (a *App) SelectFile(path string) (domain.Preview, error) {
	if err := a.requireReady(); err != nil {
		return domain.Preview{}, err
	}
	return a.upload.Select(path), nil
}

// UploadSelected submits the selected file for analysis.
func (a *App) UploadSelected() (domain.ResultView, error) {
	if err := a.requireReady(); err != nil {
		return domain.ResultView{}, err
	}
	if _, err := a.upload.Submit(a.ctx); err != nil {
		return a.board.View(), err
	}
	return a.board.View(), nil
}

// GetStatus returns the capture state and enabled controls.
func (a *App) GetStatus() domain.CaptureStatus {
	if a.capture == nil {
		if a.bootErr != nil {
			return domain.CaptureStatus{State: domain.CaptureStateError}
		}
		return domain.CaptureStatus{State: domain.CaptureStateIdle}
	}
	return a.capture.Status()
}

// GetView returns the currently displayed result.
func (a *App) GetView() domain.ResultView {
	if a.board == nil {
		return render.InitialView()
	}
	return a.board.View()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	cfg := a.services.Config
	return map[string]string{
		"apiBase":          cfg.Service.APIBaseURL,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"audioContainer":   cfg.Audio.Container,
		"recordingName":    cfg.Session.RecordingName,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.capture == nil || a.upload == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) currentPreview() domain.Preview {
	selected := a.upload.Selected()
	if selected == "" {
		return domain.Preview{}
	}
	return a.upload.Select(selected)
}

// CaptureStateChanged emits recording lifecycle updates to the frontend.
func (a *App) CaptureStateChanged(state domain.CaptureState, controls domain.Controls) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventState, map[string]interface{}{
		"state":        string(state),
		"startEnabled": controls.StartEnabled,
		"stopEnabled":  controls.StopEnabled,
		"recordLabel":  presenter.RecordLabel(state),
		"recordColor":  recordColor(state),
	})
}

// StatusChanged emits the status line.
func (a *App) StatusChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	tone := presenter.ToneOf(status)
	a.emit(a.ctx, eventStatus, map[string]string{
		"reason":  string(status.Reason),
		"kind":    string(status.Kind),
		"origin":  string(status.Origin),
		"message": presenter.Message(status),
		"detail":  status.Detail,
		"tone":    string(tone),
		"color":   toneColor(tone),
	})
}

// ResultRendered emits the rendered analysis fields.
func (a *App) ResultRendered(view domain.ResultView) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventResult, view)
}

// PreviewChanged shows or hides the audio player.
func (a *App) PreviewChanged(preview domain.Preview) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventPreview, preview)
}

func (a *App) chartDrawn(png []byte) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventChart, map[string]string{
		"src": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func toneColor(tone presenter.Tone) string {
	switch tone {
	case presenter.TonePending:
		return "orange"
	case presenter.ToneLive, presenter.ToneFailure:
		return "red"
	case presenter.ToneSuccess:
		return "green"
	default:
		return ""
	}
}

func recordColor(state domain.CaptureState) string {
	switch state {
	case domain.CaptureStateAcquiring, domain.CaptureStateRecording:
		return "#f44336"
	case domain.CaptureStateFinalizing, domain.CaptureStateSubmitting:
		return "#ff9800"
	default:
		return "#4CAF50"
	}
}
