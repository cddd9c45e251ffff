// Package vdd is the virtual-display service shape (SPEC_FULL.md §L.5):
// the real driver lifecycle stays external (spec.md §1's Non-goals keep
// virtual-display driver management out of scope), but a faithful core
// still needs the collaborator's shape — imperative enable/disable/
// toggle/reload verbs plus a request/response round trip to a helper
// process — so internal/coordinator has something concrete to call when
// a monitor names a virtual output.
//
// Grounded on original_source/src/display_device/vdd_utils.cpp: a
// subprocess call per verb with exponential-backoff retry
// (execute_vdd_command), and a named-pipe request/response exchange for
// the one verb that needs a reply (reload_driver).
package vdd

import "context"

// Service is the virtual-display collaborator. Enable/Disable/Toggle
// mirror vdd_utils.cpp's enable_vdd/disable_vdd/toggle_display_power;
// Reload mirrors reload_driver's pipe round trip.
type Service interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Toggle(ctx context.Context) error
	Reload(ctx context.Context) error
}

// NullService implements Service as a no-op; it is what a Coordinator
// falls back to when a config names no virtual output.
type NullService struct{}

func (NullService) Enable(context.Context) error  { return nil }
func (NullService) Disable(context.Context) error { return nil }
func (NullService) Toggle(context.Context) error  { return nil }
func (NullService) Reload(context.Context) error  { return nil }
