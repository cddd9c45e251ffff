//go:build !windows

package displaycap

import "github.com/streamcore/capture-core/internal/types"

// Enumerate returns the synthetic single-display list used on every
// platform other than Windows, where no display-enumeration API from
// the example pack applies. See doc.go for why this is honest
// simulation rather than a stubbed-out real backend.
func Enumerate() ([]types.DisplayHandle, error) {
	return []types.DisplayHandle{
		newHandle(Monitor{Name: "display-0", Width: 1920, Height: 1080}),
	}, nil
}
