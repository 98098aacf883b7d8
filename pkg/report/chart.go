package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Series is one named reward curve
type Series struct {
	Name   string
	Values []float64
}

// RenderRewardChart renders reward curves over episodes as an HTML page
func RenderRewardChart(w io.Writer, title string, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to plot")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Total reward"}),
	)

	numEpisodes := 0
	for _, s := range series {
		numEpisodes = max(numEpisodes, len(s.Values))
	}
	steps := make([]string, numEpisodes)
	for i := range steps {
		steps[i] = strconv.Itoa(i + 1)
	}
	line.SetXAxis(steps)

	for _, s := range series {
		items := make([]opts.LineData, 0, len(s.Values))
		for _, v := range s.Values {
			items = append(items, opts.LineData{Value: v})
		}
		line.AddSeries(s.Name, items)
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// SaveRewardChart renders the chart into an HTML file, creating its directory
func SaveRewardChart(path, title string, series ...Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return RenderRewardChart(f, title, series...)
}
