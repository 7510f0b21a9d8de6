package sweep

import (
	"context"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"hvcalibrate/device"
	"hvcalibrate/reference"
	"hvcalibrate/types"
)

// Sweeper 条件扫描控制器
type Sweeper struct {
	board  device.Board
	ref    reference.Reader
	logger golog.Logger

	Resistors    int     // 反馈电阻数量，按编号从高到低扫描
	ProbeVoltage float64 // 估算增益的探测电压
	LadderFloor  float64 // 电压阶梯最低值
	LadderPoints int     // 电压阶梯点数
	Headroom     float64 // 最大输出电压余量
	Probe        Probe

	// OnCondition 每完成一个条件后调用
	OnCondition func(done, total int, result types.ConditionResult)

	// 最近一次扫描的设置结果
	Ladder        types.Ladder
	EstimatedGain float64
}

// New 创建扫描控制器，opts 直接修改默认参数
func New(board device.Board, ref reference.Reader, logger golog.Logger, opts ...func(*Sweeper)) *Sweeper {
	if logger == nil {
		logger = golog.NewLogger("sweep")
	}
	s := &Sweeper{
		board:        board,
		ref:          ref,
		logger:       logger,
		Resistors:    types.ResistorCount,
		ProbeVoltage: types.ProbeVoltage,
		LadderFloor:  types.LadderFloor,
		LadderPoints: types.LadderPoints,
		Headroom:     types.Headroom,
		Probe:        DefaultProbe(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validateFrequencies 频率必须非空、为正且不重复，保证 (电阻, 频率) 唯一
func validateFrequencies(frequencies []float64) error {
	if len(frequencies) == 0 {
		return errors.Wrap(types.ErrInvalidFrequencies, "no frequencies")
	}
	seen := make(map[float64]bool, len(frequencies))
	for _, f := range frequencies {
		if !(f > 0) || math.IsInf(f, 0) {
			return errors.Wrapf(types.ErrInvalidFrequencies, "frequency %g", f)
		}
		if seen[f] {
			return errors.Wrapf(types.ErrInvalidFrequencies, "duplicate frequency %g", f)
		}
		seen[f] = true
	}
	return nil
}

// Setup 关闭自动增益、增益设为 1，用探测电压估算放大器增益并生成电压阶梯
func (s *Sweeper) Setup(ctx context.Context) (types.Ladder, float64, error) {
	if s.ref == nil {
		return nil, 0, errors.Wrap(types.ErrInstrumentUnavailable, "no reference instrument")
	}
	steps := []struct {
		name string
		do   func() error
	}{
		{"set voltage 0", func() error { return s.board.SetWaveformVoltage(0) }},
		{"disable auto gain", func() error { return s.board.SetAutoAdjustAmplifierGain(false) }},
		{"set gain 1", func() error { return s.board.SetAmplifierGain(1) }},
		{"set probe voltage", func() error { return s.board.SetWaveformVoltage(s.ProbeVoltage) }},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if err := step.do(); err != nil {
			return nil, 0, types.Communication(errors.Wrap(err, step.name))
		}
	}
	rms, err := s.ref.ReadRMS(ctx)
	if err != nil {
		return nil, 0, types.Communication(errors.Wrap(err, "read probe reference"))
	}
	gain := rms / s.ProbeVoltage
	if !(gain > 0) || math.IsInf(gain, 0) {
		return nil, 0, types.Communication(errors.Errorf("reference read %g V at %g V probe", rms, s.ProbeVoltage))
	}
	maxV, err := s.board.MaxWaveformVoltage()
	if err != nil {
		return nil, 0, types.Communication(errors.Wrap(err, "read max waveform voltage"))
	}
	ladder, err := types.NewLadder(s.LadderFloor, s.Headroom*maxV/gain, s.LadderPoints)
	if err != nil {
		return nil, 0, err
	}
	s.logger.Infow("amplifier gain estimated", "gain", gain, "max_actuation_v", ladder.Max(), "steps", len(ladder))
	return ladder, gain, nil
}

// Sweep 对每个 (电阻, 频率) 条件搜索饱和点并读取参考电压
//
// 任何通信错误都会终止扫描并标明出错的条件，不返回部分结果。
func (s *Sweeper) Sweep(ctx context.Context, frequencies []float64) ([]types.ConditionResult, error) {
	if err := validateFrequencies(frequencies); err != nil {
		return nil, err
	}
	ladder, gain, err := s.Setup(ctx)
	if err != nil {
		return nil, err
	}
	s.Ladder, s.EstimatedGain = ladder, gain

	grid := types.Grid(s.Resistors, frequencies)
	results := make([]types.ConditionResult, 0, len(grid))
	for i, c := range grid {
		row, err := s.measure(ctx, ladder, c)
		if err != nil {
			return nil, errors.Wrapf(err, "condition %s", c)
		}
		results = append(results, row)
		s.logger.Infow("condition measured", "resistor", int(c.Resistor), "frequency", c.Frequency,
			"actuation_index", row.ActuationIndex, "board_v", row.BoardVoltage, "oscope_v", row.ReferenceVoltage,
			"progress", i+1, "total", len(grid))
		if s.OnCondition != nil {
			s.OnCondition(i+1, len(grid), row)
		}
	}
	return results, nil
}

// measure 评估单个条件
func (s *Sweeper) measure(ctx context.Context, ladder types.Ladder, c types.Condition) (types.ConditionResult, error) {
	row := types.ConditionResult{Resistor: c.Resistor, Frequency: c.Frequency}
	if err := ctx.Err(); err != nil {
		return row, err
	}
	if err := s.board.SetWaveformFrequency(c.Frequency); err != nil {
		return row, types.Communication(errors.Wrap(err, "set frequency"))
	}
	index, batch, err := FindSaturationPoint(ctx, s.board, ladder, c.Resistor, 0, len(ladder)-1, s.Probe)
	if err != nil {
		return row, err
	}
	row.ActuationIndex = index
	row.BoardVoltage = batch.MeanFor(c.Resistor)
	if math.IsNaN(row.BoardVoltage) {
		s.logger.Warnw("no samples from target resistor at saturation point",
			"resistor", int(c.Resistor), "frequency", c.Frequency, "index", index)
	}
	rms, err := s.ref.ReadRMS(ctx)
	if err != nil {
		return row, types.Communication(errors.Wrap(err, "read reference"))
	}
	row.ReferenceVoltage = rms
	return row, nil
}
