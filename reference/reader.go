// Package reference 外部参考仪器（示波器或人工输入）的交流有效值读数。
package reference

import "context"

// Reader 参考仪器
type Reader interface {
	// ReadRMS 返回当前交流电压有效值 (V)
	ReadRMS(ctx context.Context) (float64, error)
}

// ReaderFunc 函数适配器
type ReaderFunc func(ctx context.Context) (float64, error)

func (f ReaderFunc) ReadRMS(ctx context.Context) (float64, error) { return f(ctx) }
