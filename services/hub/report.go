package hub

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"accel-dashboard/models"
	"accel-dashboard/services/window"
)

// ErrNotEnoughSamples is returned when the window cannot be plotted yet.
var ErrNotEnoughSamples = errors.New("report needs at least 2 samples")

var reportChannels = []struct {
	channel models.Channel
	color   string
	stroke  drawing.Color
}{
	{models.ChannelAX, "red", drawing.ColorRed},
	{models.ChannelAY, "green", drawing.ColorGreen},
	{models.ChannelAZ, "blue", drawing.ColorBlue},
}

// RenderHTMLReport writes an interactive page with one line chart per
// axis, oldest sample on the left.
func RenderHTMLReport(w io.Writer, snap window.Snapshot, title string) error {
	if snap.Len < 2 {
		return ErrNotEnoughSamples
	}
	labels := make([]string, snap.Len)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}

	page := components.NewPage()
	page.PageTitle = title
	for _, rc := range reportChannels {
		values := snap.Series[rc.channel]
		data := make([]opts.LineData, len(values))
		for i, v := range values {
			data[i] = opts.LineData{Value: v}
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithTitleOpts(opts.Title{
				Title:    rc.channel.Label(),
				Subtitle: fmt.Sprintf("last %d samples", snap.Len),
			}),
			charts.WithTooltipOpts(opts.Tooltip{
				Show:    opts.Bool(true),
				Trigger: "axis",
			}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "sample", Type: "category"}),
			charts.WithYAxisOpts(opts.YAxis{Name: "m/s²", Type: "value", Scale: opts.Bool(true)}),
			charts.WithInitializationOpts(opts.Initialization{
				Width:  "100%",
				Height: "320px",
			}),
		)
		line.SetXAxis(labels).AddSeries(rc.channel.Label(), data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: rc.color}),
		)
		page.AddCharts(line)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// RenderPNGReport writes a static chart of all three axes.
func RenderPNGReport(w io.Writer, snap window.Snapshot, title string, width, height int) error {
	if snap.Len < 2 {
		return ErrNotEnoughSamples
	}
	xs := make([]float64, snap.Len)
	for i := range xs {
		xs[i] = float64(i + 1)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	series := make([]chart.Series, 0, len(reportChannels))
	for _, rc := range reportChannels {
		ys := snap.Series[rc.channel]
		for _, v := range ys {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    rc.channel.Label(),
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: rc.stroke, StrokeWidth: 2},
		})
	}
	// A flat window would give the renderer a zero-height range.
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}

	ch := chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 28}},
		XAxis:      chart.XAxis{Name: "sample"},
		YAxis:      chart.YAxis{Name: "m/s²", Range: &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render png report: %w", err)
	}
	return nil
}
