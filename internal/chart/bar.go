package chart

import (
	"bytes"
	"fmt"
	"sync"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Config sizes the rendered chart.
type Config struct {
	Width  int
	Height int
}

var (
	labels = [3]string{"Hypo", "Hyper", "Flow"}
	colors = [3]drawing.Color{
		drawing.ColorFromHex("2196f3"),
		drawing.ColorFromHex("f44336"),
		drawing.ColorFromHex("4caf50"),
	}
)

// StateBars renders the three state percentages as a bar chart PNG.
type StateBars struct {
	cfg    Config
	onDraw func(png []byte)

	mu     sync.Mutex
	series [3]float64
	last   []byte
}

// NewStateBars builds a chart that hands each redraw to onDraw.
func NewStateBars(cfg Config, onDraw func(png []byte)) *StateBars {
	if cfg.Width <= 0 {
		cfg.Width = 480
	}
	if cfg.Height <= 0 {
		cfg.Height = 320
	}
	return &StateBars{cfg: cfg, onDraw: onDraw}
}

func (s *StateBars) SetSeries(series [3]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = series
}

func (s *StateBars) Series() [3]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series
}

// Update renders the current series and publishes the PNG.
func (s *StateBars) Update() error {
	s.mu.Lock()
	png, err := s.render()
	if err == nil {
		s.last = png
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if s.onDraw != nil {
		s.onDraw(png)
	}
	return nil
}

// PNG returns the most recent rendering, nil before the first Update.
func (s *StateBars) PNG() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.last...)
}

func (s *StateBars) render() ([]byte, error) {
	bars := make([]gochart.Value, 0, len(s.series))
	for i, v := range s.series {
		bars = append(bars, gochart.Value{
			Label: labels[i],
			Value: clampPercent(v),
			Style: gochart.Style{FillColor: colors[i], StrokeColor: colors[i], StrokeWidth: 1},
		})
	}

	graph := gochart.BarChart{
		Title:      "State Percentage",
		Width:      s.cfg.Width,
		Height:     s.cfg.Height,
		BarWidth:   s.cfg.Width / 6,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: 100},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render state chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Bars outside the axis range break go-chart's layout; the values themselves
// are passed through untouched elsewhere.
func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
