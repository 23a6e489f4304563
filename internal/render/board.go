package render

import (
	"log/slog"
	"sync"

	"flowmic/internal/domain"
	"flowmic/internal/ports"
)

// Board is the single render target shared by the capture and upload paths.
// Submissions reserve a ticket when they start; a result is only applied if
// its ticket is newer than the last one rendered.
type Board struct {
	display ports.Display
	chart   ports.ChartSink
	logger  *slog.Logger

	mu      sync.Mutex
	view    domain.ResultView
	issued  uint64
	applied uint64
}

func NewBoard(display ports.Display, chart ports.ChartSink, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		display: display,
		chart:   chart,
		logger:  logger,
		view:    InitialView(),
	}
}

// Reserve hands out the next submission ticket.
func (b *Board) Reserve() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issued++
	return b.issued
}

// Apply renders result if seq is newer than the last applied ticket.
func (b *Board) Apply(seq uint64, result domain.AnalysisResult) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq <= b.applied {
		b.logger.Info("dropping stale analysis result", "ticket", seq, "applied", b.applied)
		return false
	}

	b.view = Render(b.view, &result)
	b.applied = seq

	b.display.ResultRendered(cloneView(b.view))
	if b.chart != nil {
		b.chart.SetSeries(b.view.Series)
		if err := b.chart.Update(); err != nil {
			b.logger.Warn("chart redraw failed", "error", err)
		}
	}
	return true
}

// View returns a copy of the currently displayed result.
func (b *Board) View() domain.ResultView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneView(b.view)
}

func cloneView(view domain.ResultView) domain.ResultView {
	view.Matches = append([]string(nil), view.Matches...)
	if view.Matches == nil {
		view.Matches = []string{}
	}
	return view
}
