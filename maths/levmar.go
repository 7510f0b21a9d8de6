package maths

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Settings Levenberg-Marquardt 参数
type Settings struct {
	MaxIterations  int     // 最大外层迭代次数
	Tolerance      float64 // 参数步长与残差下降的相对容差
	InitialDamping float64 // 初始阻尼系数 λ
}

// DefaultSettings 默认参数
func DefaultSettings() Settings {
	return Settings{MaxIterations: 200, Tolerance: 1e-10, InitialDamping: 1e-3}
}

// Result 最小二乘结果
type Result struct {
	X          []float64 // 最优参数
	Cost       float64   // 残差平方和
	Iterations int       // 外层迭代次数
	Status     Status    // 结束原因
}

const maxDamping = 1e16

// LevenbergMarquardt 求解非线性最小二乘 min Σ r_i(x)²
// 参数:
//
//	f  - 残差函数
//	m  - 残差数量
//	x0 - 初值（各分量的量级用于参数缩放）
//
// 算法:
//  1. 参数按初值量级缩放为 u = x / |x0|，使电阻 (~1e6) 与电容 (~1e-9) 同量级
//  2. 中心差分计算雅可比矩阵 J
//  3. 求解 (JᵀJ + λ·diag(JᵀJ)) δ = -Jᵀr（Cholesky）
//  4. 残差下降则接受并减小 λ，否则增大 λ 重试
//
// 达到最大迭代次数时返回当前结果和 ErrNotConverged。
func LevenbergMarquardt(f ResidualFunc, m int, x0 []float64, settings Settings) (*Result, error) {
	n := len(x0)
	if m < n {
		return nil, ErrUnderdetermined
	}
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = DefaultSettings().MaxIterations
	}
	if settings.Tolerance <= 0 {
		settings.Tolerance = DefaultSettings().Tolerance
	}
	if settings.InitialDamping <= 0 {
		settings.InitialDamping = DefaultSettings().InitialDamping
	}

	scale := make([]float64, n)
	u := make([]float64, n)
	for i, v := range x0 {
		scale[i] = math.Abs(v)
		if scale[i] < Epsilon {
			scale[i] = 1
		}
		u[i] = v / scale[i]
	}
	p := &problem{f: f, m: m, scale: scale, x: make([]float64, n)}

	r := make([]float64, m)
	cost := p.cost(r, u)
	if !isFinite(cost) {
		return nil, ErrNonFinite
	}

	var (
		J      = mat.NewDense(m, n, nil)
		jtj    mat.SymDense
		damped = mat.NewSymDense(n, nil)
		g      mat.VecDense
		delta  mat.VecDense
		chol   mat.Cholesky
		lambda = settings.InitialDamping
		uNew   = make([]float64, n)
		rNew   = make([]float64, m)
	)
	result := &Result{}
	for result.Iterations = 1; result.Iterations <= settings.MaxIterations; result.Iterations++ {
		if err := p.jacobian(J, u); err != nil {
			return nil, err
		}
		jtj.SymOuterK(1, J.T())
		g.MulVec(J.T(), mat.NewVecDense(m, r))
		if mat.Norm(&g, math.Inf(1)) <= settings.Tolerance*settings.Tolerance {
			return p.result(result, u, cost, GradientConverged), nil
		}

		for {
			damped.CopySym(&jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				if d < Epsilon {
					d = 1
				}
				damped.SetSym(i, i, jtj.At(i, i)+lambda*d)
			}
			if ok := chol.Factorize(damped); !ok {
				if lambda *= 10; lambda > maxDamping {
					return p.result(result, u, cost, DampingSaturated), nil
				}
				continue
			}
			if err := chol.SolveVecTo(&delta, &g); err != nil {
				if lambda *= 10; lambda > maxDamping {
					return p.result(result, u, cost, DampingSaturated), nil
				}
				continue
			}
			for i := range uNew {
				uNew[i] = u[i] - delta.AtVec(i)
			}
			costNew := p.cost(rNew, uNew)
			if isFinite(costNew) && costNew < cost {
				step := mat.Norm(&delta, 2)
				reduction := cost - costNew
				copy(u, uNew)
				copy(r, rNew)
				cost = costNew
				lambda = math.Max(lambda/10, 1e-12)
				tol := settings.Tolerance
				switch {
				case step <= tol*(floats.Norm(u, 2)+tol):
					return p.result(result, u, cost, StepConverged), nil
				case reduction <= tol*cost:
					return p.result(result, u, cost, CostConverged), nil
				}
				break
			}
			if lambda *= 10; lambda > maxDamping {
				return p.result(result, u, cost, DampingSaturated), nil
			}
		}
	}
	result.Iterations = settings.MaxIterations
	return p.result(result, u, cost, 0), ErrNotConverged
}

// problem 缩放后的残差问题
type problem struct {
	f     ResidualFunc
	m     int
	scale []float64
	x     []float64 // 反缩放后的参数缓存
}

// cost 计算缩放参数 u 处的残差及平方和
func (p *problem) cost(dst, u []float64) float64 {
	for i := range u {
		p.x[i] = u[i] * p.scale[i]
	}
	p.f(dst, p.x)
	return floats.Dot(dst, dst)
}

// jacobian 中心差分雅可比矩阵
func (p *problem) jacobian(J *mat.Dense, u []float64) error {
	n := len(u)
	up := make([]float64, n)
	rPlus := make([]float64, p.m)
	rMinus := make([]float64, p.m)
	h0 := math.Cbrt(2.220446049250313e-16)
	for j := 0; j < n; j++ {
		h := h0 * math.Max(math.Abs(u[j]), 1)
		copy(up, u)
		up[j] = u[j] + h
		p.cost(rPlus, up)
		up[j] = u[j] - h
		p.cost(rMinus, up)
		for i := 0; i < p.m; i++ {
			d := (rPlus[i] - rMinus[i]) / (2 * h)
			if !isFinite(d) {
				return ErrNonFinite
			}
			J.Set(i, j, d)
		}
	}
	return nil
}

func (p *problem) result(res *Result, u []float64, cost float64, status Status) *Result {
	res.X = make([]float64, len(u))
	for i := range u {
		res.X[i] = u[i] * p.scale[i]
	}
	res.Cost = cost
	res.Status = status
	return res
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
