package types

import (
	"fmt"
	"math"
)

// Condition 扫描条件网格中的一格
type Condition struct {
	Resistor  ResistorIndex `json:"resistor_index"`
	Frequency float64       `json:"frequency"`
}

func (c Condition) String() string {
	return fmt.Sprintf("R=%d, f=%g", int(c.Resistor), c.Frequency)
}

// Grid 电阻（降序，外层）与频率（调用方顺序，内层）的笛卡尔积
func Grid(resistors int, frequencies []float64) []Condition {
	grid := make([]Condition, 0, resistors*len(frequencies))
	for r := resistors - 1; r >= 0; r-- {
		for _, f := range frequencies {
			grid = append(grid, Condition{Resistor: ResistorIndex(r), Frequency: f})
		}
	}
	return grid
}

// ConditionResult 校准数据集中的一行
type ConditionResult struct {
	Resistor         ResistorIndex `json:"resistor_index"`
	Frequency        float64       `json:"frequency"`
	ActuationIndex   int           `json:"actuation_index"`
	BoardVoltage     float64       `json:"board_measured_v"`
	ReferenceVoltage float64       `json:"oscope_measured_v"`
}

// Condition 行键
func (r ConditionResult) Condition() Condition {
	return Condition{Resistor: r.Resistor, Frequency: r.Frequency}
}

// Attenuation 控制板读数与参考读数之比
func (r ConditionResult) Attenuation() float64 {
	if r.ReferenceVoltage == 0 {
		return math.NaN()
	}
	return r.BoardVoltage / r.ReferenceVoltage
}

// ByResistor 按电阻分组，保持原有行顺序，忽略无效电阻行
func ByResistor(results []ConditionResult) map[ResistorIndex][]ConditionResult {
	groups := make(map[ResistorIndex][]ConditionResult)
	for _, r := range results {
		if !r.Resistor.Valid() {
			continue
		}
		groups[r.Resistor] = append(groups[r.Resistor], r)
	}
	return groups
}
