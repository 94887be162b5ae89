package chart

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"IndexTracker/internal/model"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"
)

const (
	indexColor = "#2CA02C"
	etfColor   = "#1F77B4"
)

// Shows the date and both prices to two decimals for the hovered day.
const tooltipFormatter = `function (params) {
	var text = params[0].axisValueLabel;
	params.forEach(function (p) {
		text += '<br/>' + p.marker + p.seriesName + ': ' + Number(p.value).toFixed(2);
	});
	return text;
}`

// RenderError reports a chart that could not be produced.
type RenderError struct {
	Title string
	Err   error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render %q: %v", e.Title, e.Err) }

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer writes one standalone interactive HTML chart per pair.
type Renderer struct {
	dir          string
	windowMonths int
	assetsHost   string
	logger       *zap.Logger
}

// NewRenderer creates a Renderer writing into dir, creating it if needed.
// An empty assetsHost keeps the go-echarts default CDN.
func NewRenderer(dir string, windowMonths int, assetsHost string, logger *zap.Logger) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	return &Renderer{dir: dir, windowMonths: windowMonths, assetsHost: assetsHost, logger: logger}, nil
}

// FileName returns the chart file name for a pair title.
func FileName(title string) string {
	return FileNameStem(title) + ".html"
}

// FileNameStem is FileName without the extension.
func FileNameStem(title string) string {
	safe := strings.ReplaceAll(title, " ", "_")
	return strings.ReplaceAll(safe, "/", "-")
}

// Render writes the dual-axis comparison of joined and returns the file path.
func (r *Renderer) Render(cfg model.PairConfig, joined model.JoinedSeries) (string, error) {
	if len(joined) == 0 {
		return "", &RenderError{Title: cfg.Title, Err: fmt.Errorf("no data")}
	}
	path := filepath.Join(r.dir, FileName(cfg.Title))
	if err := r.write(path, r.build(cfg, joined)); err != nil {
		return "", &RenderError{Title: cfg.Title, Err: err}
	}
	r.logger.Debug("chart written", zap.String("path", path), zap.Int("rows", len(joined)))
	return path, nil
}

// write renders into a temp file and renames it over path, so a failed run
// leaves the previous chart intact.
func (r *Renderer) write(path string, line *charts.Line) error {
	tmp, err := os.CreateTemp(r.dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := line.Render(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (r *Renderer) build(cfg model.PairConfig, joined model.JoinedSeries) *charts.Line {
	dates := make([]string, len(joined))
	index := make([]opts.LineData, len(joined))
	etf := make([]opts.LineData, len(joined))
	for i, row := range joined {
		dates[i] = row.Date.Format(model.DateLayout)
		index[i] = opts.LineData{Value: row.IndexPrice}
		etf[i] = opts.LineData{Value: row.ETFPrice}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  cfg.Title,
			Width:      "1200px",
			Height:     "600px",
			AssetsHost: r.assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    cfg.Title,
			Subtitle: r.subtitle(cfg, joined),
			Left:     "center",
		}),
		charts.WithColorsOpts(opts.Colors{indexColor, etfColor}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "50"}),
		// axis trigger: one readout per date and a vertical guide that follows
		// the pointer and disappears when it leaves the plot
		charts.WithTooltipOpts(opts.Tooltip{
			Show:        opts.Bool(true),
			Trigger:     "axis",
			Formatter:   opts.FuncOpts(tooltipFormatter),
			AxisPointer: &opts.AxisPointer{Type: "line", Snap: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Index", Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: opts.Bool(true),
			Feature: &opts.ToolBoxFeature{
				DataZoom:    &opts.ToolBoxFeatureDataZoom{Show: opts.Bool(true)},
				Restore:     &opts.ToolBoxFeatureRestore{Show: opts.Bool(true)},
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{Show: opts.Bool(true), Name: FileNameStem(cfg.Title)},
			},
		}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "ETF", Scale: opts.Bool(true)})

	line.SetXAxis(dates).
		AddSeries(cfg.IndexSymbol, index,
			charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 0, ShowSymbol: opts.Bool(false)})).
		AddSeries(cfg.ETFSymbol, etf,
			charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1, ShowSymbol: opts.Bool(false)}))
	return line
}

func (r *Renderer) subtitle(cfg model.PairConfig, joined model.JoinedSeries) string {
	from := joined[0].Date.Format(model.DateLayout)
	to := joined[len(joined)-1].Date.Format(model.DateLayout)
	return fmt.Sprintf("%s (left) vs %s (right) | %s ~ %s | window %d months",
		cfg.IndexSymbol, cfg.ETFSymbol, from, to, r.windowMonths)
}
