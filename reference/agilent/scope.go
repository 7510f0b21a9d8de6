// Package agilent Agilent 示波器交流有效值读数（VISA）。
package agilent

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"hvcalibrate/types"
)

// 示波器指令
const (
	cmdIdentify  = "*IDN?"
	cmdAutoscale = "AUTOSCALE"
	cmdVRMS      = "MEASURE:VRMS? DISPLAY,AC"
)

// Conn 仪器会话上的文本指令通道
type Conn interface {
	Write(cmd string) error
	Read() (string, error)
	Close() error
}

// Oscope 示波器
type Oscope struct {
	conn     Conn
	Settle   time.Duration // 每条指令前的稳定时间
	Identity string        // *IDN? 应答
}

// Open 连接示波器，address 为空时使用第一个发现的 VISA 仪器
//
// 任何失败都返回 types.ErrInstrumentUnavailable，调用方应在测量前终止。
func Open(address string, settle time.Duration) (*Oscope, error) {
	conn, err := dial(address)
	if err != nil {
		return nil, errors.Wrap(types.ErrInstrumentUnavailable, err.Error())
	}
	o, err := New(conn, settle)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return o, nil
}

// New 在已建立的连接上创建示波器并查询标识
func New(conn Conn, settle time.Duration) (*Oscope, error) {
	o := &Oscope{conn: conn, Settle: settle}
	if err := conn.Write(cmdIdentify); err != nil {
		return nil, errors.Wrap(types.ErrInstrumentUnavailable, err.Error())
	}
	id, err := conn.Read()
	if err != nil {
		return nil, errors.Wrap(types.ErrInstrumentUnavailable, err.Error())
	}
	o.Identity = id
	return o, nil
}

// ReadRMS 自动量程后读取显示区域的交流有效值
func (o *Oscope) ReadRMS(ctx context.Context) (float64, error) {
	for _, cmd := range []string{cmdAutoscale, cmdVRMS} {
		if err := o.settle(ctx); err != nil {
			return 0, err
		}
		if err := o.conn.Write(cmd); err != nil {
			return 0, errors.Wrap(types.ErrInstrumentCommunication, err.Error())
		}
	}
	if err := o.settle(ctx); err != nil {
		return 0, err
	}
	response, err := o.conn.Read()
	if err != nil {
		return 0, errors.Wrap(types.ErrInstrumentCommunication, err.Error())
	}
	v, err := strconv.ParseFloat(response, 64)
	if err != nil {
		return 0, errors.Wrapf(types.ErrInstrumentCommunication, "parse VRMS response %q", response)
	}
	return v, nil
}

func (o *Oscope) settle(ctx context.Context) error {
	if o.Settle <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.Settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close 断开连接
func (o *Oscope) Close() error { return o.conn.Close() }
