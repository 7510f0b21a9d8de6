// Package fit 按反馈电阻拟合有效电阻与寄生电容。
package fit

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"hvcalibrate/feedback"
	"hvcalibrate/maths"
	"hvcalibrate/types"
)

// ResistorError 单个电阻的拟合失败，不影响其它电阻
type ResistorError struct {
	Resistor types.ResistorIndex
	Err      error
}

func (e *ResistorError) Error() string { return fmt.Sprintf("%s: %v", e.Resistor, e.Err) }

func (e *ResistorError) Unwrap() error { return e.Err }

// Fitter 拟合参数
type Fitter struct {
	R1       float64 // 第一级固定电阻
	Settings maths.Settings
	Logger   golog.Logger
}

// New 默认拟合参数
func New(logger golog.Logger) *Fitter {
	return &Fitter{
		R1: types.ReferenceR1,
		Settings: maths.Settings{
			MaxIterations:  types.MaxFitIterations,
			Tolerance:      types.FitTolerance,
			InitialDamping: maths.DefaultSettings().InitialDamping,
		},
		Logger: logger,
	}
}

// Fit 对每个有数据的电阻拟合 (R2, C2)
//
// 返回按电阻编号排序的成功结果；失败的电阻被省略，其错误（*ResistorError）合并后返回。
// 没有任何行的电阻直接跳过。
func (f *Fitter) Fit(ctx context.Context, results []types.ConditionResult, priors types.Calibration) ([]types.FittedParameters, error) {
	groups := types.ByResistor(results)
	indices := make([]int, 0, len(groups))
	for r := range groups {
		indices = append(indices, int(r))
	}
	sort.Ints(indices)

	var (
		fitted []types.FittedParameters
		errs   error
	)
	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r := types.ResistorIndex(i)
		p, err := f.Resistor(priors.HardwareMajor, r, groups[r], priors)
		if err != nil {
			errs = multierr.Append(errs, &ResistorError{Resistor: r, Err: err})
			if f.Logger != nil {
				f.Logger.Warnw("feedback fit failed", "resistor", i, "error", err)
			}
			continue
		}
		fitted = append(fitted, p)
	}
	return fitted, errs
}

// Resistor 拟合单个电阻
func (f *Fitter) Resistor(hwMajor int, r types.ResistorIndex, rows []types.ConditionResult, priors types.Calibration) (types.FittedParameters, error) {
	c0, r0, err := priors.Prior(r)
	if err != nil {
		return types.FittedParameters{}, err
	}
	out := types.FittedParameters{Resistor: r, OriginalCapacitance: c0, OriginalResistance: r0}

	var freqs, attenuation []float64
	for _, row := range rows {
		a := row.Attenuation()
		if math.IsNaN(a) || math.IsInf(a, 0) {
			continue
		}
		freqs = append(freqs, row.Frequency)
		attenuation = append(attenuation, a)
	}
	if len(freqs) < 2 {
		return out, errors.Wrapf(types.ErrInsufficientData, "%d usable rows for 2 parameters", len(freqs))
	}
	if _, err := feedback.Attenuation(hwMajor, f.R1, r0, c0, freqs[0]); err != nil {
		return out, err
	}

	// 参数顺序 (C2, R2)
	residual := func(dst, x []float64) {
		for i, freq := range freqs {
			model, _ := feedback.Attenuation(hwMajor, f.R1, x[1], x[0], freq)
			dst[i] = model - attenuation[i]
		}
	}
	res, err := maths.LevenbergMarquardt(residual, len(freqs), []float64{c0, r0}, f.Settings)
	if err != nil {
		return out, errors.Wrap(types.ErrFitNonconvergence, err.Error())
	}
	out.FittedCapacitance, out.FittedResistance = res.X[0], res.X[1]
	out.Iterations, out.Cost = res.Iterations, res.Cost
	if f.Logger != nil {
		f.Logger.Debugw("feedback fit converged", "resistor", int(r), "rows", len(freqs),
			"r", out.FittedResistance, "c", out.FittedCapacitance, "iterations", res.Iterations,
			"cost", res.Cost, "status", res.Status.String())
	}
	return out, nil
}

// Fit 使用默认参数拟合
func Fit(ctx context.Context, results []types.ConditionResult, priors types.Calibration, logger golog.Logger) ([]types.FittedParameters, error) {
	return New(logger).Fit(ctx, results, priors)
}
