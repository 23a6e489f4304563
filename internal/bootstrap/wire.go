package bootstrap

import (
	"io"
	"log/slog"
	"os"

	"flowmic/internal/analysis"
	"flowmic/internal/audio"
	"flowmic/internal/chart"
	"flowmic/internal/config"
	"flowmic/internal/logging"
	"flowmic/internal/ports"
	"flowmic/internal/render"
	"flowmic/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Config  config.Config
	Logger  *slog.Logger
	Capture *usecase.CaptureController
	Upload  *usecase.UploadController
	Board   *render.Board
	Chart   *chart.StateBars

	logCloser io.Closer
}

// Close releases the log file, if any.
func (s Services) Close() error {
	if s.logCloser == nil {
		return nil
	}
	return s.logCloser.Close()
}

// Build wires all backend dependencies for the current runtime. previews may
// be nil when the front end cannot play files back; onChart receives every
// redrawn chart PNG and may also be nil.
func Build(display ports.Display, previews ports.PreviewPublisher, onChart func(png []byte)) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger, logCloser := logging.New(cfg.Log, os.Stderr)
	logger.Debug("configuration loaded", "api_base", cfg.Service.APIBaseURL, "env_files", cfg.EnvFiles)

	bars := chart.NewStateBars(chart.Config{Width: cfg.Chart.Width, Height: cfg.Chart.Height}, onChart)
	board := render.NewBoard(display, bars, logger)
	client := analysis.NewClient(analysis.Config{BaseURL: cfg.Service.APIBaseURL}, nil, logger)

	capture := usecase.NewCaptureController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		client,
		board,
		display,
		logger,
		usecase.CaptureConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
				Container:   cfg.Audio.Container,
			},
			ChunkSize:   cfg.Session.ChunkSize,
			PayloadName: cfg.Session.RecordingName,
			ContentType: audio.ContentType(cfg.Audio.Container),
		},
	)
	upload := usecase.NewUploadController(client, board, display, previews, logger)

	return Services{
		Config:    cfg,
		Logger:    logger,
		Capture:   capture,
		Upload:    upload,
		Board:     board,
		Chart:     bars,
		logCloser: logCloser,
	}, nil
}
