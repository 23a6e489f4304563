// Package presenter turns backend statuses into the text and tone shown to
// the user. Front ends map tones to their own colours.
package presenter

import "flowmic/internal/domain"

type Tone string

const (
	ToneNeutral Tone = "neutral"
	TonePending Tone = "pending"
	ToneLive    Tone = "live"
	ToneSuccess Tone = "success"
	ToneFailure Tone = "failure"
)

// Message returns the status line for a status.
func Message(status domain.Status) string {
	switch status.Reason {
	case domain.StatusReady:
		return "Ready"
	case domain.StatusRecordingPending:
		return "Waiting for microphone..."
	case domain.StatusRecording:
		return "🎙️ Recording..."
	case domain.StatusProcessing:
		return "⏳ Processing..."
	case domain.StatusDone:
		return "✅ Done!"
	case domain.StatusUploading:
		return "⏳ Uploading..."
	case domain.StatusUploadDone:
		return "✅ File processed!"
	case domain.StatusSuperseded:
		return "Newer result already shown"
	case domain.StatusNoAudio:
		return "⚠️ No audio captured"
	case domain.StatusDiscarded:
		return "Recording discarded"
	case domain.StatusFailed:
		return failureMessage(status)
	default:
		return string(status.Reason)
	}
}

func failureMessage(status domain.Status) string {
	switch status.Kind {
	case domain.ErrorKindPermissionDenied:
		return "❌ Microphone access denied"
	case domain.ErrorKindEmptyInput:
		return "Please select a file first."
	}
	if status.Origin == domain.SubmissionUpload {
		return "❌ Failed to process file"
	}
	return "❌ Failed to process audio"
}

// ToneOf classifies a status for colouring.
func ToneOf(status domain.Status) Tone {
	switch status.Reason {
	case domain.StatusRecording:
		return ToneLive
	case domain.StatusRecordingPending, domain.StatusProcessing, domain.StatusUploading:
		return TonePending
	case domain.StatusDone, domain.StatusUploadDone:
		return ToneSuccess
	case domain.StatusFailed, domain.StatusNoAudio:
		return ToneFailure
	default:
		return ToneNeutral
	}
}

// RecordLabel is the record button caption for a capture state.
func RecordLabel(state domain.CaptureState) string {
	switch state {
	case domain.CaptureStateAcquiring, domain.CaptureStateRecording:
		return "🔴 Recording..."
	case domain.CaptureStateFinalizing, domain.CaptureStateSubmitting:
		return "⏳ Processing..."
	default:
		return "🎙️ Start Recording"
	}
}
