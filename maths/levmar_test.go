package maths

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
)

// TestLevenbergMarquardtExponential 拟合 y = a·exp(-b·t)，参数量级相差很大
func TestLevenbergMarquardtExponential(t *testing.T) {
	const a, b = 3e5, 2e-3
	ts := make([]float64, 40)
	ys := make([]float64, len(ts))
	for i := range ts {
		ts[i] = float64(i) * 50
		ys[i] = a * math.Exp(-b*ts[i])
	}
	f := func(dst, x []float64) {
		for i := range ts {
			dst[i] = x[0]*math.Exp(-x[1]*ts[i]) - ys[i]
		}
	}
	res, err := LevenbergMarquardt(f, len(ts), []float64{2e5, 3e-3}, DefaultSettings())
	if err != nil {
		t.Fatalf("LevenbergMarquardt failed: %v", err)
	}
	if math.Abs(res.X[0]-a)/a > 1e-6 || math.Abs(res.X[1]-b)/b > 1e-6 {
		t.Errorf("Fit incorrect. Got %v, expected [%g %g]", res.X, a, b)
	}
	if res.Cost > 1e-6 {
		t.Errorf("Expected near-zero cost, got %g", res.Cost)
	}
}

// TestLevenbergMarquardtNoisyLine 带噪声直线拟合与线性最小二乘解一致
func TestLevenbergMarquardtNoisyLine(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	xs := make([]float64, 50)
	ys := make([]float64, len(xs))
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = 2.5*xs[i] - 4 + rnd.NormFloat64()*0.1
	}
	f := func(dst, p []float64) {
		for i := range xs {
			dst[i] = p[0]*xs[i] + p[1] - ys[i]
		}
	}
	res, err := LevenbergMarquardt(f, len(xs), []float64{1, 1}, DefaultSettings())
	if err != nil {
		t.Fatalf("LevenbergMarquardt failed: %v", err)
	}

	// 正规方程闭式解
	var sx, sy, sxx, sxy float64
	n := float64(len(xs))
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	slope := (n*sxy - sx*sy) / (n*sxx - sx*sx)
	intercept := (sy - slope*sx) / n
	if math.Abs(res.X[0]-slope) > 1e-6 || math.Abs(res.X[1]-intercept) > 1e-5 {
		t.Errorf("Fit incorrect. Got %v, expected [%g %g]", res.X, slope, intercept)
	}
}

// TestLevenbergMarquardtUnderdetermined 残差少于参数时报错
func TestLevenbergMarquardtUnderdetermined(t *testing.T) {
	f := func(dst, x []float64) { dst[0] = x[0] + x[1] }
	if _, err := LevenbergMarquardt(f, 1, []float64{1, 1}, DefaultSettings()); !errors.Is(err, ErrUnderdetermined) {
		t.Errorf("Expected ErrUnderdetermined, got %v", err)
	}
}

// TestLevenbergMarquardtNonFinite 初值处残差非有限
func TestLevenbergMarquardtNonFinite(t *testing.T) {
	f := func(dst, x []float64) {
		dst[0] = math.NaN()
		dst[1] = x[0]
	}
	if _, err := LevenbergMarquardt(f, 2, []float64{1}, DefaultSettings()); !errors.Is(err, ErrNonFinite) {
		t.Errorf("Expected ErrNonFinite, got %v", err)
	}
}

// TestLevenbergMarquardtIterationLimit 迭代次数不足时返回 ErrNotConverged
func TestLevenbergMarquardtIterationLimit(t *testing.T) {
	// Rosenbrock 残差形式
	f := func(dst, x []float64) {
		dst[0] = 10 * (x[1] - x[0]*x[0])
		dst[1] = 1 - x[0]
	}
	res, err := LevenbergMarquardt(f, 2, []float64{-1.2, 1}, Settings{MaxIterations: 1, Tolerance: 1e-14})
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("Expected ErrNotConverged, got %v", err)
	}
	if res == nil || res.Iterations != 1 {
		t.Errorf("Expected partial result after 1 iteration, got %+v", res)
	}

	res, err = LevenbergMarquardt(f, 2, []float64{-1.2, 1}, DefaultSettings())
	if err != nil {
		t.Fatalf("LevenbergMarquardt failed: %v", err)
	}
	if math.Abs(res.X[0]-1) > 1e-6 || math.Abs(res.X[1]-1) > 1e-6 {
		t.Errorf("Expected [1 1], got %v", res.X)
	}
}

// TestLogSpace 对数等间距频率
func TestLogSpace(t *testing.T) {
	f, err := LogSpace(100, 10000, 3)
	if err != nil {
		t.Fatalf("LogSpace failed: %v", err)
	}
	want := []float64{100, 1000, 10000}
	for i := range want {
		if math.Abs(f[i]-want[i])/want[i] > 1e-12 {
			t.Errorf("f[%d] = %g, expected %g", i, f[i], want[i])
		}
	}
	if _, err := LogSpace(0, 1, 3); err == nil {
		t.Errorf("Expected error for lo = 0")
	}
}
