//go:build !windows

package vdd

import (
	"context"
	"io"
)

// DefaultPipeName matches pipe_windows.go's constant for callers that
// build the Dialer generically; it has no meaning off Windows.
const DefaultPipeName = `\\.\pipe\MTTVirtualDisplayPipe`

// DialNamedPipe has no non-Windows transport: the virtual-display
// helper this pipe talks to is itself Windows-only.
func DialNamedPipe(name string) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		return nil, errUnsupportedPlatform
	}
}

var errUnsupportedPlatform = vddError("vdd: named-pipe transport is only available on windows")
