package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"hvcalibrate/feedback"
	"hvcalibrate/maths"
	"hvcalibrate/types"
)

// CurvePoints 拟合曲线采样点数
var CurvePoints = 100

// PlotAttenuation 绘制每个电阻的实测衰减与拟合前后的模型曲线 (双对数坐标)
func PlotAttenuation(rec *Record, r1 float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Feedback attenuation"
	if rec.RunID != uuid.Nil {
		p.Title.Text += " " + rec.RunID.String()
	}
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "V_board / V_hv"
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	groups := types.ByResistor(rec.Readings)
	fitted := make(map[types.ResistorIndex]types.FittedParameters, len(rec.Fitted))
	for _, f := range rec.Fitted {
		fitted[f.Resistor] = f
	}
	indices := make([]int, 0, len(groups))
	for r := range groups {
		indices = append(indices, int(r))
	}
	sort.Ints(indices)

	drawn := false
	for n, i := range indices {
		r := types.ResistorIndex(i)
		pts, lo, hi := measured(groups[r])
		if len(pts) == 0 {
			continue
		}
		color := plotutil.Color(n)
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "%s measured", r)
		}
		scatter.GlyphStyle.Color = color
		scatter.GlyphStyle.Shape = plotutil.Shape(n)
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("%s measured", r), scatter)
		drawn = true

		f, ok := fitted[r]
		if !ok || !(hi > lo) {
			continue
		}
		freqs, err := maths.LogSpace(lo, hi, CurvePoints)
		if err != nil {
			return nil, err
		}
		for k, c := range []struct {
			name string
			r, c float64
		}{
			{"previous fit", f.OriginalResistance, f.OriginalCapacitance},
			{"new fit", f.FittedResistance, f.FittedCapacitance},
		} {
			line, err := curve(rec.Priors.HardwareMajor, r1, c.r, c.c, freqs)
			if err != nil {
				return nil, errors.Wrapf(err, "%s %s", r, c.name)
			}
			line.LineStyle.Color = color
			line.LineStyle.Width = vg.Points(1)
			if k == 0 {
				line.LineStyle.Dashes = plotutil.Dashes(1)
			}
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("%s %s", r, c.name), line)
		}
	}
	// 对数坐标要求数据全部为正
	if drawn {
		p.X.Scale = plot.LogScale{}
		p.Y.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	return p, nil
}

// measured 有效衰减点及频率范围
func measured(rows []types.ConditionResult) (plotter.XYs, float64, float64) {
	pts := make(plotter.XYs, 0, len(rows))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		a := row.Attenuation()
		if !(a > 0) || math.IsInf(a, 0) || !(row.Frequency > 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: row.Frequency, Y: a})
		lo, hi = math.Min(lo, row.Frequency), math.Max(hi, row.Frequency)
	}
	return pts, lo, hi
}

func curve(hwMajor int, r1, r2, c2 float64, freqs []float64) (*plotter.Line, error) {
	a, err := feedback.Curve(hwMajor, r1, math.Abs(r2), math.Abs(c2), freqs)
	if err != nil {
		return nil, err
	}
	pts := make(plotter.XYs, len(freqs))
	for i, f := range freqs {
		if !(a[i] > 0) {
			return nil, errors.Errorf("non-positive attenuation at %g Hz", f)
		}
		pts[i] = plotter.XY{X: f, Y: a[i]}
	}
	return plotter.NewLine(pts)
}

// WriteAttenuation 以 format (svg、png、pdf 等) 输出衰减图
func WriteAttenuation(w io.Writer, rec *Record, r1 float64, format string) error {
	p, err := PlotAttenuation(rec, r1)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, format)
	if err != nil {
		return errors.Wrap(err, "render attenuation plot")
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveAttenuation 保存衰减图，格式由扩展名决定
func SaveAttenuation(path string, rec *Record, r1 float64) error {
	p, err := PlotAttenuation(rec, r1)
	if err != nil {
		return err
	}
	return errors.Wrap(p.Save(8*vg.Inch, 6*vg.Inch, path), "save attenuation plot")
}
