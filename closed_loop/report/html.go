package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders the same panels as WritePNG as interactive line charts
// on a single page.
func WriteHTML(w io.Writer, s Series) error {
	if s.Len() == 0 {
		return ErrEmpty
	}

	xs := make([]string, s.Len())
	for i, t := range s.T {
		xs[i] = fmt.Sprintf("%.2f", t)
	}

	yaw := newLineChart(s.Title, "yaw rate", "rad/s", xs)
	yaw.AddSeries("yaw rate", lineData(s.YawRate))
	if upper, lower := s.TargetBand(); upper != nil {
		yaw.AddSeries("target right", lineData(upper)).
			AddSeries("target left", lineData(lower))
	}

	cmd := newLineChart("", "commands", "", xs)
	cmd.AddSeries("steering", lineData(s.Steering)).
		AddSeries("throttle", lineData(s.Throttle))

	temp := newLineChart("", "water temperature", "°C", xs)
	temp.AddSeries("water temp", lineData(s.WaterTemp))

	page := components.NewPage()
	page.PageTitle = s.Title
	page.AddCharts(yaw, cmd, temp)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// SaveHTML writes the HTML report to path, creating parent directories.
func SaveHTML(path string, s Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html: %w", err)
	}
	defer f.Close()
	return WriteHTML(f, s)
}

func newLineChart(title, subtitle, unit string, xs []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit}),
	)
	line.SetXAxis(xs)
	return line
}

func lineData(ys []float64) []opts.LineData {
	out := make([]opts.LineData, len(ys))
	for i, y := range ys {
		out[i] = opts.LineData{Value: y}
	}
	return out
}
