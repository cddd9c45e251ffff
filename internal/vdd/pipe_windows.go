//go:build windows

package vdd

import (
	"context"
	"io"

	"golang.org/x/sys/windows"
)

// DefaultPipeName is the original's kVddPipeName.
const DefaultPipeName = `\\.\pipe\MTTVirtualDisplayPipe`

type pipeConn struct {
	handle windows.Handle
}

func (p *pipeConn) Read(b []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(p.handle, b, &n, nil)
	return int(n), err
}

func (p *pipeConn) Write(b []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(p.handle, b, &n, nil)
	return int(n), err
}

func (p *pipeConn) Close() error {
	return windows.CloseHandle(p.handle)
}

// DialNamedPipe opens name for read/write, matching
// connect_to_pipe_with_retry's CreateFileW call (minus the async-IO
// overlap, which Go's synchronous ReadFile/WriteFile don't need here).
func DialNamedPipe(name string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		p, err := windows.UTF16PtrFromString(name)
		if err != nil {
			return nil, err
		}
		h, err := windows.CreateFile(
			p,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			0,
			0,
		)
		if err != nil {
			return nil, err
		}
		return &pipeConn{handle: h}, nil
	}
}
