package report

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	etypes "github.com/go-echarts/go-echarts/v2/types"

	"hvcalibrate/maths"
	"hvcalibrate/types"
)

// Charts 校准运行网页图表
type Charts struct {
	Record
	R1 float64 // 第一级固定电阻
}

func logChart(title, subtitle, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: etypes.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Hz",
			Type: "log",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:  yName,
			Type:  "log",
			Scale: opts.Bool(true),
		}),
		charts.WithAnimation(true),
	)
	return line
}

func point(x, y float64) []interface{} { return []interface{}{x, y} }

func finite(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

// Render 格式化
func (c *Charts) Render(w io.Writer) error {
	attenuation := logChart("反馈衰减", "实测与拟合前后模型曲线", "V_board / V_hv")
	voltage := logChart("测量电压", "饱和点处控制板与示波器读数", "V")

	groups := types.ByResistor(c.Readings)
	fitted := make(map[types.ResistorIndex]types.FittedParameters, len(c.Fitted))
	for _, f := range c.Fitted {
		fitted[f.Resistor] = f
	}
	indices := make([]int, 0, len(groups))
	for r := range groups {
		indices = append(indices, int(r))
	}
	sort.Ints(indices)

	for _, i := range indices {
		r := types.ResistorIndex(i)
		rows := groups[r]
		// 测量点
		{
			var a, board, scope []opts.LineData
			for _, row := range rows {
				if v := row.Attenuation(); finite(v) {
					a = append(a, opts.LineData{Value: point(row.Frequency, v)})
				}
				if finite(row.BoardVoltage) {
					board = append(board, opts.LineData{Value: point(row.Frequency, row.BoardVoltage)})
				}
				if finite(row.ReferenceVoltage) {
					scope = append(scope, opts.LineData{Value: point(row.Frequency, row.ReferenceVoltage)})
				}
			}
			attenuation.AddSeries(fmt.Sprintf("%s measured", r), a,
				charts.WithLineStyleOpts(opts.LineStyle{Width: 0}),
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
			voltage.AddSeries(fmt.Sprintf("%s board", r), board)
			voltage.AddSeries(fmt.Sprintf("%s oscope", r), scope)
		}
		// 模型曲线
		f, ok := fitted[r]
		_, lo, hi := measured(rows)
		if !ok || !(hi > lo) {
			continue
		}
		freqs, err := maths.LogSpace(lo, hi, CurvePoints)
		if err != nil {
			return err
		}
		for _, m := range []struct {
			name  string
			r, c  float64
			style string
		}{
			{"previous fit", f.OriginalResistance, f.OriginalCapacitance, "dashed"},
			{"new fit", f.FittedResistance, f.FittedCapacitance, "solid"},
		} {
			line, err := curve(c.Priors.HardwareMajor, c.R1, m.r, m.c, freqs)
			if err != nil {
				return err
			}
			data := make([]opts.LineData, 0, line.Len())
			for k := 0; k < line.Len(); k++ {
				x, y := line.XY(k)
				data = append(data, opts.LineData{Value: point(x, y)})
			}
			attenuation.AddSeries(fmt.Sprintf("%s %s", r, m.name), data,
				charts.WithLineStyleOpts(opts.LineStyle{Type: m.style}),
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		}
	}

	page := components.NewPage()
	page.PageTitle = "hvcalibrate " + c.RunID.String()
	page.AddCharts(attenuation, voltage)
	return page.Render(w)
}

// Handler 发布到网页面
func (c *Charts) Handler(w http.ResponseWriter, _ *http.Request) {
	if err := c.Render(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
