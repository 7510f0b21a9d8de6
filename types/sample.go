package types

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ResistorIndex 反馈电阻编号，负数表示该采样无有效电阻
type ResistorIndex int

// Valid 是否为有效电阻
func (r ResistorIndex) Valid() bool { return r >= 0 }

func (r ResistorIndex) String() string {
	if !r.Valid() {
		return "R(none)"
	}
	return fmt.Sprintf("R%d", int(r))
}

// Sample 控制板一次ADC读数及读数时使用的反馈电阻
type Sample struct {
	Voltage  float64       `json:"board_measured_v"`
	Resistor ResistorIndex `json:"resistor_index"`
}

// Batch 一批采样
type Batch []Sample

// Valid 返回有效电阻的采样
func (b Batch) Valid() Batch {
	valid := make(Batch, 0, len(b))
	for _, s := range b {
		if s.Resistor.Valid() {
			valid = append(valid, s)
		}
	}
	return valid
}

// AnyBelow 是否有有效采样使用了编号小于 r 的电阻
func (b Batch) AnyBelow(r ResistorIndex) bool {
	for _, s := range b {
		if s.Resistor.Valid() && s.Resistor < r {
			return true
		}
	}
	return false
}

// Mean 有效采样的平均电压，无有效采样时为 NaN
func (b Batch) Mean() float64 {
	return mean(b, func(s Sample) bool { return s.Resistor.Valid() })
}

// MeanFor 使用电阻 r 的采样的平均电压，无匹配采样时为 NaN
func (b Batch) MeanFor(r ResistorIndex) float64 {
	return mean(b, func(s Sample) bool { return s.Resistor == r })
}

func mean(b Batch, keep func(Sample) bool) float64 {
	values := make([]float64, 0, len(b))
	for _, s := range b {
		if keep(s) {
			values = append(values, s.Voltage)
		}
	}
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}
