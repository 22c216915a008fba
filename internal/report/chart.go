package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/seaenv/internal/boundary"
)

// ReflectionChart renders the surface and seabed reflection magnitudes over
// grazing angle as a standalone HTML page.
func ReflectionChart(w io.Writer, title string, top, bottom *boundary.Table) error {
	if top == nil || bottom == nil {
		return fmt.Errorf("%w: reflection tables are required", ErrNoData)
	}

	angles := make([]string, boundary.NumAngles)
	for i, r := range top {
		angles[i] = strconv.FormatFloat(r.Angle, 'f', -1, 64)
	}

	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(
		magnitudeChart("Sea surface", "trc", angles, top),
		magnitudeChart("Seabed", "brc", angles, bottom),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render reflection chart: %w", err)
	}
	return nil
}

func magnitudeChart(name, series string, angles []string, t *boundary.Table) *charts.Line {
	data := make([]opts.LineData, 0, boundary.NumAngles)
	for _, m := range t.Magnitudes() {
		data = append(data, opts.LineData{Value: m})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: name, Subtitle: fmt.Sprintf("phase %.0f°", t[0].Phase)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Grazing angle (°)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "|R|", Min: 0, Max: 1}),
	)
	line.SetXAxis(angles).AddSeries(series, data)
	return line
}
