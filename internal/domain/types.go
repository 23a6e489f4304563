package domain

import (
	"io"
	"strings"
)

// CaptureState models the recording lifecycle.
type CaptureState string

const (
	CaptureStateIdle       CaptureState = "idle"
	CaptureStateAcquiring  CaptureState = "acquiring"
	CaptureStateRecording  CaptureState = "recording"
	CaptureStateFinalizing CaptureState = "finalizing"
	CaptureStateSubmitting CaptureState = "submitting"
	CaptureStateDone       CaptureState = "done"
	CaptureStateError      CaptureState = "error"
)

// Controls reports which capture actions are currently accepted.
type Controls struct {
	StartEnabled bool `json:"startEnabled"`
	StopEnabled  bool `json:"stopEnabled"`
}

// ControlsFor derives control enablement from a capture state.
func ControlsFor(state CaptureState) Controls {
	switch state {
	case CaptureStateIdle, CaptureStateDone, CaptureStateError:
		return Controls{StartEnabled: true}
	case CaptureStateRecording:
		return Controls{StopEnabled: true}
	default:
		return Controls{}
	}
}

// CaptureStatus summarizes the capture controller.
type CaptureStatus struct {
	State    CaptureState `json:"state"`
	Controls Controls     `json:"controls"`
	Active   bool         `json:"active"`
}

// SubmissionKind selects the analysis endpoint.
type SubmissionKind string

const (
	SubmissionUpload  SubmissionKind = "upload"
	SubmissionCapture SubmissionKind = "capture"
)

// Payload is one submittable audio object.
type Payload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// MatchedWord is a spoken token matched against a lexical anchor.
type MatchedWord struct {
	Token         string  `json:"token"`
	MatchedAnchor string  `json:"matched_anchor"`
	Similarity    float64 `json:"similarity"`
}

// StatePercentages are independent gauges in [0,100].
type StatePercentages struct {
	Hypo  float64 `json:"hypo"`
	Hyper float64 `json:"hyper"`
	Flow  float64 `json:"flow"`
}

// Series returns the gauges in chart order.
func (p StatePercentages) Series() [3]float64 {
	return [3]float64{p.Hypo, p.Hyper, p.Flow}
}

// AnalysisResult is the analysis service response. Empty strings mean absent.
type AnalysisResult struct {
	Transcription    string           `json:"transcription,omitempty"`
	Emotion          string           `json:"emotion,omitempty"`
	DominantState    string           `json:"dominant_state,omitempty"`
	MatchedWords     []MatchedWord    `json:"matched_words"`
	StatePercentages StatePercentages `json:"state_percentages"`
}

// ResultView is what the result area currently displays.
type ResultView struct {
	Transcription string     `json:"transcription"`
	Emotion       string     `json:"emotion"`
	Dominant      string     `json:"dominant"`
	Matches       []string   `json:"matches"`
	Series        [3]float64 `json:"series"`
}

// Preview describes the local playback source for a selected file.
type Preview struct {
	Visible bool   `json:"visible"`
	Source  string `json:"source,omitempty"`
	Name    string `json:"name,omitempty"`
}

// StatusReason identifies a status line independent of its wording.
type StatusReason string

const (
	StatusReady            StatusReason = "ready"
	StatusRecordingPending StatusReason = "recording_pending"
	StatusRecording        StatusReason = "recording"
	StatusProcessing       StatusReason = "processing"
	StatusDone             StatusReason = "done"
	StatusUploading        StatusReason = "uploading"
	StatusUploadDone       StatusReason = "upload_done"
	StatusSuperseded       StatusReason = "superseded"
	StatusNoAudio          StatusReason = "no_audio"
	StatusDiscarded        StatusReason = "discarded"
	StatusFailed           StatusReason = "failed"
)

// Status is a presentation-free status update.
type Status struct {
	Reason StatusReason   `json:"reason"`
	Kind   ErrorKind      `json:"kind,omitempty"`
	Origin SubmissionKind `json:"origin,omitempty"`
	Detail string         `json:"detail,omitempty"`
}

// AudioContentType maps an audio container or file extension to its MIME
// type. Unknown names map to application/octet-stream.
func AudioContentType(container string) string {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(container), ".")) {
	case "wav", "wave":
		return "audio/wav"
	case "ogg", "opus", "oga":
		return "audio/ogg"
	case "webm":
		return "audio/webm"
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	case "m4a", "mp4":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
