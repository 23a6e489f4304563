package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"flowmic/internal/domain"
	"flowmic/internal/ports"
)

// UploadController submits a user-selected audio file. The only state it
// keeps is the current selection.
type UploadController struct {
	client   ports.AnalysisClient
	board    ports.ResultBoard
	display  ports.Display
	previews ports.PreviewPublisher
	logger   *slog.Logger

	mu       sync.Mutex
	selected string
}

func NewUploadController(
	client ports.AnalysisClient,
	board ports.ResultBoard,
	display ports.Display,
	previews ports.PreviewPublisher,
	logger *slog.Logger,
) *UploadController {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadController{
		client:   client,
		board:    board,
		display:  display,
		previews: previews,
		logger:   logger,
	}
}

// Select records the chosen file and updates the playback preview. No
// analysis request is made.
func (u *UploadController) Select(path string) domain.Preview {
	path = strings.TrimSpace(path)

	u.mu.Lock()
	u.selected = path
	u.mu.Unlock()

	preview := domain.Preview{}
	if path == "" {
		if u.previews != nil {
			u.previews.Clear()
		}
		u.display.PreviewChanged(preview)
		return preview
	}

	preview.Name = filepath.Base(path)
	if u.previews != nil {
		source, err := u.previews.Publish(path)
		if err != nil {
			u.logger.Warn("preview unavailable", "path", path, "error", err)
			u.previews.Clear()
		} else {
			preview.Visible = true
			preview.Source = source
		}
	}
	u.display.PreviewChanged(preview)
	return preview
}

// Selected returns the current selection, "" when none.
func (u *UploadController) Selected() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.selected
}

// Submit uploads the selected file and renders the result.
func (u *UploadController) Submit(ctx context.Context) (domain.AnalysisResult, error) {
	path := u.Selected()
	if path == "" {
		err := domain.NewSubmissionError(domain.ErrorKindEmptyInput, errors.New("no file selected"))
		u.display.StatusChanged(uploadFailed(err))
		return domain.AnalysisResult{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		subErr := domain.NewSubmissionError(domain.ErrorKindEmptyInput, fmt.Errorf("cannot open selected file: %w", err))
		u.display.StatusChanged(uploadFailed(subErr))
		return domain.AnalysisResult{}, subErr
	}
	defer f.Close()

	u.display.StatusChanged(domain.Status{Reason: domain.StatusUploading, Origin: domain.SubmissionUpload})

	seq := u.board.Reserve()
	u.logger.Info("uploading file", "path", path, "ticket", seq)

	result, err := u.client.Submit(ctx, domain.Payload{
		Name:        filepath.Base(path),
		ContentType: uploadContentType(path),
		Body:        f,
	}, domain.SubmissionUpload)
	if err != nil {
		u.logger.Warn("file analysis failed", "path", path, "error", err)
		u.display.StatusChanged(uploadFailed(err))
		return domain.AnalysisResult{}, fmt.Errorf("analyze file: %w", err)
	}

	reason := domain.StatusUploadDone
	if !u.board.Apply(seq, result) {
		reason = domain.StatusSuperseded
	}
	u.display.StatusChanged(domain.Status{Reason: reason, Origin: domain.SubmissionUpload})
	return result, nil
}

func uploadContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return domain.AudioContentType(ext)
}

func uploadFailed(err error) domain.Status {
	status := failedStatus(err)
	status.Origin = domain.SubmissionUpload
	return status
}
