// Package displaycap provides the platform DisplayHandle
// implementations the capture task drives (spec.md §3-§4). Real GPU
// desktop-duplication paths (DXGI, VAAPI-DRM, CoreGraphics/
// ScreenCaptureKit) need vendor SDKs or cgo bindings that don't appear
// anywhere in the example pack, so — following the same sdk.go/stub.go
// split Prodro21's pkg/ndi uses for the NDI SDK — every platform here
// gets a DisplayHandle that is honest about producing synthetic pixel
// data: on Windows it enumerates the real monitor list and geometry
// through the teacher's own lazy-DLL syscall idiom (windows.go), and
// everywhere else (generic.go) it simulates a single display. Neither
// wraps a fabricated hardware binding.
package displaycap
