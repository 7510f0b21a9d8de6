// Package device 定义校准流程驱动的控制板能力集合。
package device

import "hvcalibrate/types"

// Board 控制板接口
//
// 所有调用均为阻塞往返，调用方保证串行访问。
type Board interface {
	SetWaveformVoltage(v float64) error
	SetWaveformFrequency(f float64) error
	// MeasureImpedance 采集 n 个反馈电压采样，每个采样标记读数时使用的反馈电阻
	MeasureImpedance(n int, samplingMs, delayMs float64) (types.Batch, error)

	AmplifierGain() (float64, error)
	SetAmplifierGain(gain float64) error
	AutoAdjustAmplifierGain() (bool, error)
	SetAutoAdjustAmplifierGain(auto bool) error
	MaxWaveformVoltage() (float64, error)

	SetSeriesResistorIndex(channel int, index types.ResistorIndex) error
	SetSeriesResistance(channel int, r float64) error
	SetSeriesCapacitance(channel int, c float64) error
	// ReloadCalibration 重新连接控制板并加载校准数据
	ReloadCalibration() error
	// Calibration 当前反馈电阻校准值与硬件主版本
	Calibration() (types.Calibration, error)
}
