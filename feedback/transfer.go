// Package feedback 控制板高压反馈分压电路的传递函数模型。
//
// 每个反馈电阻 R 与寄生电容 C 并联，阻抗为
//
//	Z(R, C, f) = R / (1 + j·2π·f·R·C)
//
// 硬件版本 1 为分压器：V2 / Z2 = V1 / (Z1 + Z2)
// 硬件版本 2 为反相放大：V2 / V1 = Z2 / Z1
//
// 其中 V1 为放大器输出的高压驱动信号，V2 为进入 ADC 的衰减信号。
package feedback

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

// Node 求解的电路节点
type Node string

const (
	V1 Node = "V1" // 已知 V2 求高压驱动信号
	V2 Node = "V2" // 已知 V1 求衰减信号
)

// Params 传递函数参数，C1 为零表示第一级无并联电容
type Params struct {
	V1, V2 float64 // 已知端电压（求解节点对应的字段被忽略）
	R1, C1 float64
	R2, C2 float64
	F      float64 // 频率 (Hz)
}

// Impedance 电阻与电容并联的复阻抗
func Impedance(r, c, f float64) complex128 {
	return complex(r, 0) / complex(1, 2*math.Pi*f*r*c)
}

// ratio 返回 V2/V1 的复数比
func ratio(hwMajor int, p Params) (complex128, error) {
	z1 := Impedance(p.R1, p.C1, p.F)
	z2 := Impedance(p.R2, p.C2, p.F)
	switch hwMajor {
	case 1:
		return z2 / (z1 + z2), nil
	case 2:
		return z2 / z1, nil
	}
	return 0, errors.Errorf("no transfer function for hardware major version %d", hwMajor)
}

// Compute 按硬件主版本计算节点 node 的电压幅值
func Compute(hwMajor int, node Node, p Params) (float64, error) {
	h, err := ratio(hwMajor, p)
	if err != nil {
		return 0, err
	}
	switch node {
	case V2:
		return p.V1 * cmplx.Abs(h), nil
	case V1:
		return p.V2 / cmplx.Abs(h), nil
	}
	return 0, errors.Errorf("unknown node %q", node)
}

// Attenuation 单位输入下的 |V2/V1|，用于拟合与绘图
func Attenuation(hwMajor int, r1, r2, c2, f float64) (float64, error) {
	return Compute(hwMajor, V2, Params{V1: 1, R1: r1, R2: r2, C2: c2, F: f})
}

// Curve 在一组频率上计算衰减
func Curve(hwMajor int, r1, r2, c2 float64, frequencies []float64) ([]float64, error) {
	out := make([]float64, len(frequencies))
	for i, f := range frequencies {
		a, err := Attenuation(hwMajor, r1, r2, c2, f)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}
