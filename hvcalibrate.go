// Package hvcalibrate 控制板高压反馈通道校准：条件扫描、参数拟合、写回校准值。
package hvcalibrate

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"hvcalibrate/config"
	"hvcalibrate/device"
	"hvcalibrate/fit"
	"hvcalibrate/maths"
	"hvcalibrate/reference"
	"hvcalibrate/report"
	"hvcalibrate/sweep"
	"hvcalibrate/types"
	"hvcalibrate/writer"
)

// Calibrator 校准流程
type Calibrator struct {
	board  device.Board
	ref    reference.Reader
	cfg    config.Config
	logger golog.Logger

	// OnCondition 每完成一个扫描条件后调用
	OnCondition func(done, total int, result types.ConditionResult)
}

// Result 一次校准运行的结果
type Result struct {
	RunID    uuid.UUID
	Priors   types.Calibration        // 运行前控制板中的校准值
	Readings []types.ConditionResult  // 条件扫描读数
	Fitted   []types.FittedParameters // 收敛的拟合结果
	FitErr   error                    // 未收敛电阻的错误，不影响其它电阻写回
	Applied  bool                     // 拟合结果已写回控制板
}

// Record 转为报告记录
func (r *Result) Record() *report.Record {
	return &report.Record{RunID: r.RunID, Priors: r.Priors, Readings: r.Readings, Fitted: r.Fitted}
}

// New 创建校准流程
func New(board device.Board, ref reference.Reader, cfg config.Config, logger golog.Logger) *Calibrator {
	if logger == nil {
		logger = golog.NewLogger("hvcalibrate")
	}
	return &Calibrator{board: board, ref: ref, cfg: cfg, logger: logger}
}

// Sweeper 按配置创建扫描控制器
func (c *Calibrator) Sweeper(logger golog.Logger) *sweep.Sweeper {
	return sweep.New(c.board, c.ref, logger, func(s *sweep.Sweeper) {
		s.Resistors = c.cfg.Sweep.Resistors
		s.ProbeVoltage = c.cfg.Sweep.ProbeVoltage
		s.LadderFloor = c.cfg.Sweep.LadderFloor
		s.LadderPoints = c.cfg.Sweep.LadderPoints
		s.Headroom = c.cfg.Sweep.Headroom
		s.Probe.Samples = c.cfg.Probe.Samples
		s.Probe.SamplingMs = c.cfg.Probe.SamplingMs
		s.Probe.DelayMs = c.cfg.Probe.DelayMs
		s.Probe.Retries = c.cfg.Probe.Retries
		s.OnCondition = c.OnCondition
	})
}

// Fitter 按配置创建拟合器
func (c *Calibrator) Fitter(logger golog.Logger) *fit.Fitter {
	f := fit.New(logger)
	f.R1 = c.cfg.Fit.R1
	f.Settings = maths.Settings{
		MaxIterations:  c.cfg.Fit.MaxIterations,
		Tolerance:      c.cfg.Fit.Tolerance,
		InitialDamping: f.Settings.InitialDamping,
	}
	return f
}

// Run 读取当前校准值，扫描 frequencies (为空时使用配置)，拟合并写回收敛的电阻
//
// 扫描或写回失败时返回错误；拟合失败的电阻记录在 Result.FitErr 中。
func (c *Calibrator) Run(ctx context.Context, frequencies []float64) (*Result, error) {
	res := &Result{RunID: uuid.New()}
	logger := c.logger.With("run_id", res.RunID.String())

	if len(frequencies) == 0 {
		var err error
		if frequencies, err = c.cfg.FrequencyList(); err != nil {
			return res, errors.Wrap(types.ErrInvalidFrequencies, err.Error())
		}
	}
	priors, err := c.board.Calibration()
	if err != nil {
		return res, types.Communication(errors.Wrap(err, "read calibration"))
	}
	res.Priors = priors
	logger.Infow("calibration started", "hw_major", priors.HardwareMajor, "frequencies", len(frequencies),
		"resistors", c.cfg.Sweep.Resistors, "dry_run", c.cfg.DryRun)

	if res.Readings, err = c.Sweeper(logger).Sweep(ctx, frequencies); err != nil {
		return res, errors.Wrap(err, "sweep")
	}

	res.Fitted, res.FitErr = c.Fitter(logger).Fit(ctx, res.Readings, priors)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	for _, p := range res.Fitted {
		logger.Infow("feedback resistor fitted", "resistor", int(p.Resistor),
			"r", p.FittedResistance, "c", p.FittedCapacitance,
			"original_r", p.OriginalResistance, "original_c", p.OriginalCapacitance)
	}
	if res.FitErr != nil {
		logger.Warnw("some feedback resistors were not fitted", "error", res.FitErr)
	}

	if c.cfg.DryRun {
		logger.Infow("dry run, calibration not written")
		return res, nil
	}
	if err := writer.Apply(c.board, res.Fitted); err != nil {
		return res, errors.Wrap(err, "apply calibration")
	}
	res.Applied = len(res.Fitted) > 0
	logger.Infow("calibration finished", "written", len(res.Fitted))
	return res, nil
}
