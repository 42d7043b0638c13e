// Package report renders recorded battery readings as an HTML page.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/vbat/pkg/types"
)

const timeFormat = "15:04:05"

// LiPo cell limits, used to scale the gauge.
const (
	cellEmptyVolts = 3.0
	cellFullVolts  = 4.2
)

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// VoltageChart plots battery voltage and pin millivolts over time.
func VoltageChart(readings []types.Reading, title string) *charts.Line {
	line := charts.NewLine()

	voltage := make([]opts.LineData, 0, len(readings))
	pin := make([]opts.LineData, 0, len(readings))
	timestamps := make([]string, 0, len(readings))
	for _, r := range readings {
		voltage = append(voltage, opts.LineData{Value: round3(r.Voltage), Name: r.Scheme.String()})
		pin = append(pin, opts.LineData{Value: r.PinMillivolts, YAxisIndex: 1})
		timestamps = append(timestamps, r.Time.Local().Format(timeFormat))
	}

	first, last := readings[0].Time, readings[len(readings)-1].Time
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d reading(s), %s", len(readings), last.Sub(first).Round(time.Second)),
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:  "Battery (V)",
			Type:  "value",
			Show:  true,
			Scale: true,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "Time",
			Show:      true,
			AxisLabel: &opts.AxisLabel{Show: true},
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:        true,
			Trigger:     "axis",
			AxisPointer: &opts.AxisPointer{Type: "cross", Snap: true},
		}),
		charts.WithLegendOpts(opts.Legend{Show: true}),
	)
	line.ExtendYAxis(opts.YAxis{
		Name:  "Pin (mV)",
		Type:  "value",
		Show:  true,
		Scale: true,
	})

	line.SetXAxis(timestamps).
		AddSeries("Battery", voltage, charts.WithLineChartOpts(opts.LineChart{Smooth: true, ConnectNulls: true})).
		AddSeries("Pin", pin, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1, ConnectNulls: true})).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: false}))

	return line
}

// VoltageGauge shows the latest reading against the LiPo cell range.
func VoltageGauge(latest types.Reading) *charts.Gauge {
	gauge := charts.NewGauge()
	gauge.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Latest",
		Subtitle: fmt.Sprintf("%s, %d mV at the pin", latest.Scheme, latest.PinMillivolts),
	}))

	pct := (latest.Voltage - cellEmptyVolts) / (cellFullVolts - cellEmptyVolts) * 100
	pct = math.Max(0, math.Min(100, pct))
	gauge.AddSeries("Battery", []opts.GaugeData{
		{Name: fmt.Sprintf("%.2f V", latest.Voltage), Value: math.Round(pct)},
	})
	return gauge
}

// Render writes an HTML page with the voltage chart and a gauge of the
// latest reading.
func Render(w io.Writer, readings []types.Reading, title string) error {
	if len(readings) == 0 {
		return pkgerrors.New("no readings to chart")
	}

	page := components.NewPage()
	page.PageTitle = title
	page.SetLayout(components.PageCenterLayout)
	page.AddCharts(
		VoltageChart(readings, title),
		VoltageGauge(readings[len(readings)-1]),
	)

	return pkgerrors.Wrap(page.Render(w), "failed to render chart")
}
