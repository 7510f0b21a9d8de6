//go:build visa

package agilent

import (
	"fmt"
	"strings"

	"github.com/jpoirier/visa"
	"github.com/pkg/errors"
)

const bufferSize = 1024

// visaConn 基于 VISA 资源管理器的仪器连接
type visaConn struct {
	rm    visa.Session
	instr visa.Object
	name  string
}

// dial 打开默认资源管理器并连接 address，address 为空时使用第一个发现的仪器
func dial(address string) (Conn, error) {
	rm, status := visa.OpenDefaultRM()
	if status != visa.SUCCESS {
		return nil, errors.Errorf("open VISA resource manager: status %d", status)
	}
	if address == "" {
		_, count, desc, status := rm.FindRsrc("?*INSTR")
		if status != visa.SUCCESS || count == 0 {
			rm.Close()
			return nil, errors.New("no VISA instrument found")
		}
		address = desc
	}
	instr, status := rm.Open(address, uint32(visa.NULL), uint32(visa.NULL))
	if status != visa.SUCCESS {
		rm.Close()
		return nil, errors.Errorf("connect to %q: status %d", address, status)
	}
	return &visaConn{rm: rm, instr: instr, name: address}, nil
}

func statusError(obj visa.Object, status visa.Status) error {
	desc, _ := obj.StatusDesc(status)
	if i := strings.Index(desc, "."); i > 0 {
		desc = desc[:i]
	}
	return fmt.Errorf("%d, %s", status, desc)
}

func (c *visaConn) Write(cmd string) error {
	if _, status := c.instr.Write([]byte(cmd), uint32(len(cmd))); status != visa.SUCCESS {
		return errors.Wrapf(statusError(c.instr, status), "VISA write %q", cmd)
	}
	return nil
}

func (c *visaConn) Read() (string, error) {
	buf, _, status := c.instr.Read(bufferSize)
	if status != visa.SUCCESS {
		return "", errors.Wrap(statusError(c.instr, status), "VISA read")
	}
	response := strings.TrimSpace(string(buf))
	if response == "" {
		return "", errors.Errorf("empty response from %q", c.name)
	}
	return response, nil
}

func (c *visaConn) Close() error {
	c.instr.Close()
	c.rm.Close()
	return nil
}
