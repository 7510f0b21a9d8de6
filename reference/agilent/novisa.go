//go:build !visa

package agilent

import "github.com/pkg/errors"

// dial 未启用 visa 构建标签时没有 VISA 驱动
func dial(address string) (Conn, error) {
	return nil, errors.New("built without VISA support, rebuild with -tags visa")
}
