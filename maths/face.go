package maths

import "errors"

// 补充必要常量（浮点精度阈值）
const Epsilon = 1e-16

var (
	ErrNotConverged    = errors.New("maximum iterations reached without convergence")
	ErrUnderdetermined = errors.New("fewer residuals than parameters")
	ErrNonFinite       = errors.New("residual is not finite")
)

// ResidualFunc 计算参数 x 处的残差，写入 dst（长度为残差数）
type ResidualFunc func(dst, x []float64)

// Status 最小二乘结束原因
type Status int

const (
	StepConverged     Status = iota + 1 // 参数步长小于容差
	CostConverged                       // 残差平方和不再下降
	GradientConverged                   // 梯度接近零
	DampingSaturated                    // 阻尼过大，无法继续下降
)

func (s Status) String() string {
	switch s {
	case StepConverged:
		return "step"
	case CostConverged:
		return "cost"
	case GradientConverged:
		return "gradient"
	case DampingSaturated:
		return "damping"
	}
	return "unknown"
}
