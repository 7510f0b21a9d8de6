package types

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Ladder 单调递增的候选驱动电压序列，每次校准生成一次后不再修改
type Ladder []float64

// NewLadder 在 [floor, max] 上生成 n 个等间距电压
func NewLadder(floor, max float64, n int) (Ladder, error) {
	if n < 2 {
		return nil, errors.Wrapf(ErrInvalidLadder, "need at least 2 points, got %d", n)
	}
	if !(max > floor) {
		return nil, errors.Wrapf(ErrInvalidLadder, "max voltage %g not above floor %g", max, floor)
	}
	return Ladder(floats.Span(make([]float64, n), floor, max)), nil
}

// Validate 检查严格递增
func (l Ladder) Validate() error {
	if len(l) < 2 {
		return errors.Wrapf(ErrInvalidLadder, "length %d", len(l))
	}
	for i := 1; i < len(l); i++ {
		if !(l[i] > l[i-1]) {
			return errors.Wrapf(ErrInvalidLadder, "step %d (%g) not above step %d (%g)", i, l[i], i-1, l[i-1])
		}
	}
	return nil
}

// Max 最高电压
func (l Ladder) Max() float64 { return l[len(l)-1] }
