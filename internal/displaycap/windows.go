//go:build windows

package displaycap

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/streamcore/capture-core/internal/types"
)

// Real monitor geometry is discovered through EnumDisplayMonitors, the
// same lazy-DLL user32 syscall idiom the teacher uses for its
// power-notification window (windows.go's procRegisterClassExW /
// procGetMessageW style). Pixel data itself is still synthesized —
// see doc.go — since no GPU desktop-duplication binding appears
// anywhere in the example pack.
var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procEnumDisplayMonitors  = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW      = user32.NewProc("GetMonitorInfoW")
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfoEx struct {
	Size      uint32
	Monitor   rect
	WorkArea  rect
	Flags     uint32
	Device    [32]uint16
}

// Enumerate returns one DisplayHandle per physical monitor reported by
// Windows, preserving EnumDisplayMonitors's callback order.
func Enumerate() ([]types.DisplayHandle, error) {
	var mons []Monitor
	cb := syscall.NewCallback(func(hMonitor uintptr, hdc uintptr, lprcMonitor uintptr, lParam uintptr) uintptr {
		var info monitorInfoEx
		info.Size = uint32(unsafe.Sizeof(info))
		ok, _, _ := procGetMonitorInfoW.Call(hMonitor, uintptr(unsafe.Pointer(&info)))
		if ok == 0 {
			return 1 // keep enumerating even if this one failed
		}
		mons = append(mons, Monitor{
			Name:    fmt.Sprintf("display-%d", len(mons)),
			Width:   int(info.Monitor.Right - info.Monitor.Left),
			Height:  int(info.Monitor.Bottom - info.Monitor.Top),
			OffsetX: int(info.Monitor.Left),
			OffsetY: int(info.Monitor.Top),
		})
		return 1
	})

	ret, _, callErr := procEnumDisplayMonitors.Call(0, 0, cb, 0)
	if ret == 0 && callErr != 0 && callErr != syscall.Errno(0) {
		return nil, fmt.Errorf("displaycap: EnumDisplayMonitors: %w", callErr)
	}
	if len(mons) == 0 {
		mons = []Monitor{{Name: "display-0", Width: 1920, Height: 1080}}
	}

	out := make([]types.DisplayHandle, 0, len(mons))
	for _, m := range mons {
		out = append(out, newHandle(m))
	}
	return out, nil
}
