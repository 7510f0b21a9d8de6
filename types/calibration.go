package types

import "github.com/pkg/errors"

// Calibration 控制板当前保存的反馈电阻校准值，作为拟合初值
type Calibration struct {
	HardwareMajor int       `json:"hw_major_version"`
	Resistances   []float64 `json:"r_hv"`
	Capacitances  []float64 `json:"c_hv"`
}

// Prior 返回电阻 r 的 (电容, 电阻) 初值
func (c Calibration) Prior(r ResistorIndex) (capacitance, resistance float64, err error) {
	if !r.Valid() || int(r) >= len(c.Resistances) || int(r) >= len(c.Capacitances) {
		return 0, 0, errors.Errorf("no calibration prior for %s", r)
	}
	return c.Capacitances[r], c.Resistances[r], nil
}

// FittedParameters 单个反馈电阻的拟合结果
type FittedParameters struct {
	Resistor            ResistorIndex `json:"resistor_index"`
	OriginalCapacitance float64       `json:"original_c"`
	OriginalResistance  float64       `json:"original_r"`
	FittedCapacitance   float64       `json:"fitted_c"`
	FittedResistance    float64       `json:"fitted_r"`
	Iterations          int           `json:"iterations"`
	Cost                float64       `json:"cost"` // 残差平方和
}
