// Package dialog 人工读数的模态输入窗口（gioui）。
//
// 使用该输入框的程序必须在主 goroutine 调用 app.Main()，校准流程在其它 goroutine 中运行。
package dialog

import (
	"context"

	"gioui.org/app"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"hvcalibrate/reference"
)

// Prompter 每次询问打开一个窗口，确认或回车后关闭
type Prompter struct {
	Title string
	theme *material.Theme
}

// New 创建输入框
func New(title string) *Prompter {
	return &Prompter{Title: title, theme: material.NewTheme()}
}

// Prompt 阻塞直到操作员确认或关闭窗口；直接关闭窗口返回 reference.ErrNoResponse
func (p *Prompter) Prompt(ctx context.Context, message string) (string, error) {
	window := new(app.Window)
	window.Option(app.Title(p.Title), app.Size(unit.Dp(420), unit.Dp(180)))
	stop := context.AfterFunc(ctx, func() { window.Perform(system.ActionClose) })
	defer stop()

	var (
		ops      op.Ops
		editor   = widget.Editor{SingleLine: true, Submit: true}
		confirm  widget.Clickable
		answer   string
		answered bool
		focused  bool
	)
	for {
		switch e := window.Event().(type) {
		case app.DestroyEvent:
			switch {
			case ctx.Err() != nil:
				return "", ctx.Err()
			case e.Err != nil:
				return "", e.Err
			case !answered:
				return "", reference.ErrNoResponse
			}
			return answer, nil
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			if !focused {
				gtx.Execute(key.FocusCmd{Tag: &editor})
				focused = true
			}
			for {
				ev, ok := editor.Update(gtx)
				if !ok {
					break
				}
				if _, ok := ev.(widget.SubmitEvent); ok {
					answer, answered = editor.Text(), true
				}
			}
			if confirm.Clicked(gtx) {
				answer, answered = editor.Text(), true
			}
			if answered {
				window.Perform(system.ActionClose)
			}
			p.layout(gtx, message, &editor, &confirm)
			e.Frame(gtx.Ops)
		}
	}
}

// layout 提示文字、输入框、确认按钮竖排
func (p *Prompter) layout(gtx layout.Context, message string, editor *widget.Editor, confirm *widget.Clickable) layout.Dimensions {
	th := p.theme
	return layout.UniformInset(unit.Dp(16)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(material.Body1(th, message).Layout),
			layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
			layout.Rigid(material.Editor(th, editor, "0.0").Layout),
			layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
			layout.Rigid(material.Button(th, confirm, "OK").Layout),
		)
	})
}
