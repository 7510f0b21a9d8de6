package maths

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

// LogSpace 在 [lo, hi] 上生成 n 个对数等间距点（用于扫描频率）
func LogSpace(lo, hi float64, n int) ([]float64, error) {
	if n < 2 || lo <= 0 || hi <= lo {
		return nil, errors.New("log space needs 0 < lo < hi and n >= 2")
	}
	return floats.LogSpan(make([]float64, n), lo, hi), nil
}
