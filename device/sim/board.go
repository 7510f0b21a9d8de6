// Package sim 模拟控制板与示波器，用于测试和无硬件演练。
package sim

import (
	"context"
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"hvcalibrate/feedback"
	"hvcalibrate/types"
)

// Config 模拟参数
type Config struct {
	HardwareMajor int
	Gain          float64   // 放大器真实增益
	MaxVoltage    float64   // 最大输出电压 (V)
	FullScale     float64   // ADC 满量程 (V)
	R1            float64   // 第一级电阻
	Resistances   []float64 // 反馈电阻真实值
	Capacitances  []float64 // 寄生电容真实值
	Priors        types.Calibration
	Noise         float64 // 读数相对噪声
	Seed          int64
}

// DefaultConfig 版本 2 控制板，真实值与出厂校准相差约 20%
func DefaultConfig() Config {
	return Config{
		HardwareMajor: 2,
		Gain:          150,
		MaxVoltage:    200,
		FullScale:     2.5,
		R1:            types.ReferenceR1,
		Resistances:   []float64{8.7e4, 6.4e5, 4.5e6},
		Capacitances:  []float64{1.2e-10, 1.5e-11, 3.1e-12},
		Priors: types.Calibration{
			HardwareMajor: 2,
			Resistances:   []float64{1e5, 5.2e5, 5.3e6},
			Capacitances:  []float64{1e-10, 1.8e-11, 2.6e-12},
		},
		Noise: 0.002,
		Seed:  1,
	}
}

// Board 模拟控制板，反馈电阻按电压自动切换量程
type Board struct {
	cfg       Config
	rnd       *rand.Rand
	voltage   float64
	frequency float64
	gain      float64 // 放大器增益设置
	autoGain  bool
	series    types.ResistorIndex
	pending   types.Calibration // 已写入未重载的校准值
	active    types.Calibration

	Reloads int
	// Fault 不为空时在每次操作前调用，返回错误则该操作失败
	Fault func(op string) error
}

// New 创建模拟控制板
func New(cfg Config) *Board {
	b := &Board{
		cfg:       cfg,
		rnd:       rand.New(rand.NewSource(cfg.Seed)),
		gain:      cfg.Gain,
		autoGain:  true,
		frequency: 1000,
	}
	b.active = clone(cfg.Priors)
	b.pending = clone(cfg.Priors)
	return b
}

func clone(c types.Calibration) types.Calibration {
	return types.Calibration{
		HardwareMajor: c.HardwareMajor,
		Resistances:   append([]float64(nil), c.Resistances...),
		Capacitances:  append([]float64(nil), c.Capacitances...),
	}
}

func (b *Board) fault(op string) error {
	if b.Fault == nil {
		return nil
	}
	if err := b.Fault(op); err != nil {
		return errors.Wrapf(err, "sim board %s", op)
	}
	return nil
}

// OutputVoltage 放大器输出的真实有效值
func (b *Board) OutputVoltage() float64 {
	return b.voltage / b.gain * b.cfg.Gain
}

func (b *Board) SetWaveformVoltage(v float64) error {
	if err := b.fault("set_waveform_voltage"); err != nil {
		return err
	}
	if v < 0 || v/b.gain*b.cfg.Gain > b.cfg.MaxVoltage {
		return errors.Errorf("waveform voltage %g out of range", v)
	}
	b.voltage = v
	return nil
}

func (b *Board) SetWaveformFrequency(f float64) error {
	if err := b.fault("set_waveform_frequency"); err != nil {
		return err
	}
	if f <= 0 {
		return errors.Errorf("waveform frequency %g out of range", f)
	}
	b.frequency = f
	return nil
}

// resistor 自动量程：从最小衰减的电阻开始，选择读数不超过满量程的电阻
func (b *Board) resistor(hv float64) (types.ResistorIndex, float64) {
	for i := len(b.cfg.Resistances) - 1; i >= 0; i-- {
		a, err := feedback.Attenuation(b.cfg.HardwareMajor, b.cfg.R1, b.cfg.Resistances[i], b.cfg.Capacitances[i], b.frequency)
		if err != nil {
			return types.NoResistor, 0
		}
		if v := hv * a; v <= b.cfg.FullScale {
			return types.ResistorIndex(i), v
		}
	}
	return types.NoResistor, b.cfg.FullScale
}

func (b *Board) MeasureImpedance(n int, samplingMs, delayMs float64) (types.Batch, error) {
	if err := b.fault("measure_impedance"); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, errors.Errorf("sample count %d", n)
	}
	batch := make(types.Batch, n)
	for i := range batch {
		hv := b.OutputVoltage() * (1 + b.cfg.Noise*b.rnd.NormFloat64())
		r, v := b.resistor(math.Abs(hv))
		batch[i] = types.Sample{Voltage: v, Resistor: r}
	}
	return batch, nil
}

func (b *Board) AmplifierGain() (float64, error) { return b.gain, b.fault("amplifier_gain") }

func (b *Board) SetAmplifierGain(gain float64) error {
	if err := b.fault("set_amplifier_gain"); err != nil {
		return err
	}
	if gain <= 0 {
		return errors.Errorf("amplifier gain %g", gain)
	}
	b.gain = gain
	return nil
}

func (b *Board) AutoAdjustAmplifierGain() (bool, error) {
	return b.autoGain, b.fault("auto_adjust_amplifier_gain")
}

func (b *Board) SetAutoAdjustAmplifierGain(auto bool) error {
	if err := b.fault("set_auto_adjust_amplifier_gain"); err != nil {
		return err
	}
	b.autoGain = auto
	return nil
}

func (b *Board) MaxWaveformVoltage() (float64, error) {
	return b.cfg.MaxVoltage, b.fault("max_waveform_voltage")
}

func (b *Board) SetSeriesResistorIndex(channel int, index types.ResistorIndex) error {
	if err := b.fault("set_series_resistor_index"); err != nil {
		return err
	}
	if channel != types.DefaultSeries || !index.Valid() || int(index) >= len(b.pending.Resistances) {
		return errors.Errorf("series resistor %d on channel %d", index, channel)
	}
	b.series = index
	return nil
}

func (b *Board) SetSeriesResistance(channel int, r float64) error {
	if err := b.fault("set_series_resistance"); err != nil {
		return err
	}
	b.pending.Resistances[b.series] = r
	return nil
}

func (b *Board) SetSeriesCapacitance(channel int, c float64) error {
	if err := b.fault("set_series_capacitance"); err != nil {
		return err
	}
	b.pending.Capacitances[b.series] = c
	return nil
}

func (b *Board) ReloadCalibration() error {
	if err := b.fault("reload_calibration"); err != nil {
		return err
	}
	b.active = clone(b.pending)
	b.Reloads++
	return nil
}

func (b *Board) Calibration() (types.Calibration, error) {
	return clone(b.active), b.fault("calibration")
}

// Truth 模拟使用的真实电阻电容
func (b *Board) Truth() (resistances, capacitances []float64) {
	return b.cfg.Resistances, b.cfg.Capacitances
}

// Scope 模拟示波器，读取控制板放大器输出
type Scope struct {
	Board *Board
	Noise float64
	// Fault 不为空时在每次读数前调用
	Fault func() error
}

func (s *Scope) ReadRMS(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.Fault != nil {
		if err := s.Fault(); err != nil {
			return 0, errors.Wrap(types.ErrInstrumentCommunication, err.Error())
		}
	}
	return s.Board.OutputVoltage() * (1 + s.Noise*s.Board.rnd.NormFloat64()), nil
}
