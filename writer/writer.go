// Package writer 把拟合结果写回控制板。
package writer

import (
	"math"

	"github.com/pkg/errors"

	"hvcalibrate/device"
	"hvcalibrate/types"
)

// Apply 依次写入每个电阻的 |R| 与 |C|，全部成功后重载一次校准
//
// 任一写入失败立即返回，不重载。params 为空时不做任何操作。
// 参数非法时不写入任何值。
func Apply(board device.Board, params []types.FittedParameters) error {
	if len(params) == 0 {
		return nil
	}
	for _, p := range params {
		if err := check(p); err != nil {
			return err
		}
	}
	for _, p := range params {
		if err := write(board, p); err != nil {
			return types.Communication(errors.Wrapf(err, "write %s", p.Resistor))
		}
	}
	if err := board.ReloadCalibration(); err != nil {
		return types.Communication(errors.Wrap(err, "reload calibration"))
	}
	return nil
}

// check 写入前检查全部参数，避免写入一半
func check(p types.FittedParameters) error {
	if !p.Resistor.Valid() {
		return errors.Errorf("invalid resistor index %d", int(p.Resistor))
	}
	for _, v := range []float64{p.FittedResistance, p.FittedCapacitance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("%s: non-finite parameters R=%g C=%g", p.Resistor, p.FittedResistance, p.FittedCapacitance)
		}
	}
	return nil
}

func write(board device.Board, p types.FittedParameters) error {
	r, c := math.Abs(p.FittedResistance), math.Abs(p.FittedCapacitance)
	if err := board.SetSeriesResistorIndex(types.DefaultSeries, p.Resistor); err != nil {
		return errors.Wrap(err, "select series resistor")
	}
	if err := board.SetSeriesResistance(types.DefaultSeries, r); err != nil {
		return errors.Wrap(err, "set series resistance")
	}
	if err := board.SetSeriesCapacitance(types.DefaultSeries, c); err != nil {
		return errors.Wrap(err, "set series capacitance")
	}
	return nil
}
