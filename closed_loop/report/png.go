package report

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	yawColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	targetColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	steerColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	thrColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	tempColor   = color.RGBA{R: 148, G: 103, B: 189, A: 255}
)

// ErrEmpty is returned when a series has nothing to plot.
var ErrEmpty = errors.New("report: no ticks to plot")

// WritePNG draws yaw rate, commands and water temperature as three stacked
// panels sharing the time axis.
func WritePNG(w io.Writer, s Series) error {
	if s.Len() == 0 {
		return ErrEmpty
	}

	yaw := newPanel(s.Title, "yaw rate (rad/s)")
	if err := addLine(yaw, "yaw rate", s.T, s.YawRate, yawColor); err != nil {
		return err
	}
	if upper, lower := s.TargetBand(); upper != nil {
		if err := addLine(yaw, "target right", s.T, upper, targetColor); err != nil {
			return err
		}
		if err := addLine(yaw, "target left", s.T, lower, targetColor); err != nil {
			return err
		}
	}

	cmd := newPanel("", "command")
	if err := addLine(cmd, "steering", s.T, s.Steering, steerColor); err != nil {
		return err
	}
	if err := addLine(cmd, "throttle", s.T, s.Throttle, thrColor); err != nil {
		return err
	}
	cmd.Y.Min, cmd.Y.Max = -1.05, 1.05

	temp := newPanel("", "water temp (°C)")
	temp.X.Label.Text = "time (s)"
	if err := addLine(temp, "water temp", s.T, s.WaterTemp, tempColor); err != nil {
		return err
	}
	if len(s.Cooling) > 0 {
		pts := make(plotter.XYs, len(s.Cooling))
		for i, idx := range s.Cooling {
			pts[i] = plotter.XY{X: s.T[idx], Y: s.WaterTemp[idx]}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = targetColor
		sc.GlyphStyle.Radius = vg.Points(3)
		temp.Add(sc)
		temp.Legend.Add("interlock", sc)
	}

	img := vgimg.NewWith(vgimg.UseWH(12*vg.Inch, 10*vg.Inch), vgimg.UseDPI(96))
	dc := draw.New(img)
	panels := [][]*plot.Plot{{yaw}, {cmd}, {temp}}
	tiles := draw.Tiles{Rows: 3, Cols: 1, PadY: vg.Points(6), PadTop: vg.Points(6), PadBottom: vg.Points(6)}
	canvases := plot.Align(panels, tiles, dc)
	for i := range panels {
		panels[i][0].Draw(canvases[i][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SavePNG writes the PNG report to path, creating parent directories.
func SavePNG(path string, s Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := WritePNG(bw, s); err != nil {
		return err
	}
	return bw.Flush()
}

func newPanel(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Add(plotter.NewGrid())
	return p
}

func addLine(p *plot.Plot, name string, xs, ys []float64, c color.Color) error {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("%s line: %w", name, err)
	}
	line.Color = c
	line.Width = vg.Points(1.2)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}
