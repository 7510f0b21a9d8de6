package reference

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoResponse 操作员关闭了输入框而没有输入
var ErrNoResponse = errors.New("no response from operator")

// Prompter 向操作员索取一行文本
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

// Manual 人工读数：在没有示波器时由操作员输入电压
//
// 一直阻塞直到得到可解析的数值；ErrNoResponse 与无法解析的输入都会重新询问，
// 只有 ctx 取消或 Prompter 的其它错误才会返回。
type Manual struct {
	Prompter Prompter
	Message  string
}

// NewManual 使用默认提示语
func NewManual(p Prompter) *Manual {
	return &Manual{Prompter: p, Message: "Enter the measured AC RMS voltage (V):"}
}

func (m *Manual) ReadRMS(ctx context.Context) (float64, error) {
	message := m.Message
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		text, err := m.Prompter.Prompt(ctx, message)
		switch {
		case ctx.Err() != nil:
			return 0, ctx.Err()
		case errors.Is(err, ErrNoResponse):
			continue
		case err != nil:
			return 0, errors.Wrap(err, "manual reading")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			message = fmt.Sprintf("%q is not a number. %s", strings.TrimSpace(text), m.Message)
			continue
		}
		return v, nil
	}
}

// Terminal 命令行提示
type Terminal struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewTerminal 从 in 读取回答，把提示写到 out
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{scanner: bufio.NewScanner(in), out: out}
}

// Prompt 读取一行；空行视为无回答，输入结束返回 io.EOF
func (t *Terminal) Prompt(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, message, " ")
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	line := strings.TrimSpace(t.scanner.Text())
	if line == "" {
		return "", ErrNoResponse
	}
	return line, nil
}
