package device

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"go.bug.st/serial.v1"
)

// WriteError 写设备失败（不可恢复，不重试）
type WriteError struct {
	Port  string
	Wrote int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %s failed after %d/%d bytes: %v", e.Port, e.Wrote, MessageSize, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Cause 兼容 github.com/pkg/errors
func (e *WriteError) Cause() error { return e.Err }

// Controller 灯光控制器连接
type Controller struct {
	name string
	port io.WriteCloser
	sent int
}

// Open 打开串口；失败时依次尝试 fallbacks
func Open(portName string, baudRate int, fallbacks ...string) (*Controller, error) {
	mode := &serial.Mode{BaudRate: baudRate}

	port, err := serial.Open(portName, mode)
	if err == nil {
		port.ResetInputBuffer()
		return &Controller{name: portName, port: port}, nil
	}

	for _, alt := range fallbacks {
		p, altErr := serial.Open(alt, mode)
		if altErr == nil {
			fmt.Printf("⚠️  指定端口'%s'未连接，已切换到可用端口：%s\n", portName, alt)
			p.ResetInputBuffer()
			return &Controller{name: alt, port: p}, nil
		}
	}

	return nil, errors.Wrapf(err, "could not open device %s", portName)
}

// NewController 使用任意写入端构建控制器；w 为 nil 时只打印不发送
func NewController(name string, w io.WriteCloser) *Controller {
	return &Controller{name: name, port: w}
}

// DryRun 没有实际连接
func (c *Controller) DryRun() bool {
	return c == nil || c.port == nil
}

// Name 端口名
func (c *Controller) Name() string {
	return c.name
}

// Sent 已成功发送的消息数
func (c *Controller) Sent() int {
	return c.sent
}

// Send 单次写入完整消息，写不满即视为致命错误
func (c *Controller) Send(m Message) error {
	if c.DryRun() {
		return nil
	}

	buf := m.Encode()
	n, err := c.port.Write(buf)
	if err == nil && n != len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &WriteError{Port: c.name, Wrote: n, Err: err}
	}
	c.sent++
	return nil
}

// Close 关闭连接
func (c *Controller) Close() error {
	if c.DryRun() {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}

// ListPorts 列出系统可用串口
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}
