// Package sweep 反馈电阻饱和点搜索与电阻×频率条件扫描。
package sweep

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"hvcalibrate/device"
	"hvcalibrate/types"
)

// Probe 单次测量参数
type Probe struct {
	Samples    int     // 每批采样数
	SamplingMs float64 // 采样窗口 (ms)
	DelayMs    float64 // 采样间隔 (ms)
	Retries    int     // 无有效采样时的重测次数
	Logger     golog.Logger
}

// DefaultProbe 默认测量参数
func DefaultProbe(logger golog.Logger) Probe {
	return Probe{
		Samples:    types.SampleCount,
		SamplingMs: types.SamplingMs,
		DelayMs:    types.InterSampleMs,
		Retries:    types.ProbeRetries,
		Logger:     logger,
	}
}

// Measure 读取一批反馈电压
func (p Probe) Measure(board device.Board) (types.Batch, error) {
	batch, err := board.MeasureImpedance(p.Samples, p.SamplingMs, p.DelayMs)
	if err != nil {
		return nil, types.Communication(errors.Wrap(err, "measure feedback"))
	}
	return batch, nil
}

// measureConclusive 测量直到批次中有有效采样，最多重测 Retries 次
func (p Probe) measureConclusive(ctx context.Context, board device.Board) (types.Batch, bool, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		batch, err := p.Measure(board)
		if err != nil {
			return nil, false, err
		}
		if len(batch.Valid()) > 0 {
			return batch, true, nil
		}
		if attempt >= p.Retries {
			return batch, false, nil
		}
	}
}

// FindSaturationPoint 二分搜索电压阶梯上目标电阻仍为工作电阻的最高电压
//
// 要求 0 <= low < high < len(ladder)。每次探测把电压设为 ladder[mid]：
// 只要有一个有效采样的电阻编号小于 target，说明已越过目标电阻的饱和点，high = mid；
// 否则 low = mid。没有有效采样的批次会重测，仍无有效采样时按越过饱和点处理。
// 结束后电压设为 ladder[low]，返回该点的一批测量。
func FindSaturationPoint(ctx context.Context, board device.Board, ladder types.Ladder, target types.ResistorIndex, low, high int, probe Probe) (int, types.Batch, error) {
	if low < 0 || high >= len(ladder) || low >= high {
		return 0, nil, errors.Wrapf(types.ErrInvalidConditionRange, "[%d, %d] over %d steps", low, high, len(ladder))
	}
	for low < high-1 {
		mid := low + (high-low)/2
		if err := board.SetWaveformVoltage(ladder[mid]); err != nil {
			return 0, nil, types.Communication(errors.Wrapf(err, "set voltage %g", ladder[mid]))
		}
		batch, conclusive, err := probe.measureConclusive(ctx, board)
		if err != nil {
			return 0, nil, err
		}
		switch {
		case !conclusive:
			if probe.Logger != nil {
				probe.Logger.Warnw("no valid feedback samples, treating probe as saturated",
					"resistor", int(target), "index", mid, "voltage", ladder[mid], "retries", probe.Retries)
			}
			high = mid
		case batch.AnyBelow(target):
			high = mid
		default:
			low = mid
		}
	}
	if err := board.SetWaveformVoltage(ladder[low]); err != nil {
		return 0, nil, types.Communication(errors.Wrapf(err, "set voltage %g", ladder[low]))
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	batch, err := probe.Measure(board)
	if err != nil {
		return 0, nil, err
	}
	return low, batch, nil
}
