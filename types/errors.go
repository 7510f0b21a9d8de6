package types

import (
	"context"

	"github.com/pkg/errors"
)

// 校准错误分类
var (
	// ErrInstrumentUnavailable 参考仪器无法连接或未找到，必须在任何测量之前终止
	ErrInstrumentUnavailable = errors.New("reference instrument unavailable")
	// ErrInstrumentCommunication 运行中与控制板或参考仪器通信失败，终止扫描
	ErrInstrumentCommunication = errors.New("instrument communication failed")
	// ErrFitNonconvergence 某个电阻的拟合未收敛，仅影响该电阻
	ErrFitNonconvergence = errors.New("fit did not converge")
	// ErrInvalidConditionRange 二分搜索区间非法，属于编程错误
	ErrInvalidConditionRange = errors.New("invalid condition range")
	ErrInsufficientData      = errors.New("insufficient data")
	ErrInvalidFrequencies    = errors.New("invalid frequencies")
	ErrInvalidLadder         = errors.New("invalid voltage ladder")
)

// Communication 将底层 I/O 错误归类为 ErrInstrumentCommunication，保留原始错误链
func Communication(err error) error {
	switch {
	case err == nil,
		errors.Is(err, ErrInstrumentCommunication),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &communicationError{err: err}
}

type communicationError struct{ err error }

func (e *communicationError) Error() string {
	return ErrInstrumentCommunication.Error() + ": " + e.err.Error()
}

func (e *communicationError) Unwrap() error { return e.err }

func (e *communicationError) Is(target error) bool { return target == ErrInstrumentCommunication }
