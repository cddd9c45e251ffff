// Package config loads and holds the core's runtime configuration: the
// per-vendor encoder tuning knobs that the registry's dynamic option
// values read from, plus the handful of top-level knobs (thread count,
// log level) referenced across packages.
//
// Loaded from YAML via gopkg.in/yaml.v2, matching the teacher's config.go.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// NVLegacy holds nvenc avcodec-path tuning (video.cpp: config::video.nv_legacy).
type NVLegacy struct {
	Preset    string `yaml:"preset"`
	Multipass string `yaml:"multipass"`
	AQ        int    `yaml:"aq"`
	H264Coder string `yaml:"h264_coder"`
}

// QSV holds Quick Sync tuning (config::video.qsv).
type QSV struct {
	Preset      string `yaml:"preset"`
	CAVLC       bool   `yaml:"cavlc"`
	SlowHEVC    bool   `yaml:"qsv_slow_hevc"`
}

// AMD holds AMF tuning (config::video.amd), split per codec as the
// original does since quality/rc/usage differ between av1/hevc/h264.
type AMD struct {
	Preanalysis bool   `yaml:"preanalysis"`
	EnforceHRD  bool   `yaml:"enforce_hrd"`
	VBAQ        bool   `yaml:"vbaq"`
	QualityAV1  string `yaml:"quality_av1"`
	RCAV1       string `yaml:"rc_av1"`
	UsageAV1    string `yaml:"usage_av1"`
	QualityHEVC string `yaml:"quality_hevc"`
	RCHEVC      string `yaml:"rc_hevc"`
	UsageHEVC   string `yaml:"usage_hevc"`
	QualityH264 string `yaml:"quality_h264"`
	RCH264      string `yaml:"rc_h264"`
	UsageH264   string `yaml:"usage_h264"`
}

// SW holds the software (libx264/libx265/libsvtav1) encoder tuning
// (config::video.sw).
type SW struct {
	SVTAV1Preset string `yaml:"svtav1_preset"`
	SWPreset     string `yaml:"sw_preset"`
	SWTune       string `yaml:"sw_tune"`
}

// VT holds VideoToolbox tuning (config::video.vt).
type VT struct {
	AllowSW  bool `yaml:"allow_sw"`
	RequireSW bool `yaml:"require_sw"`
	Realtime bool `yaml:"realtime"`
}

// Video is the video-pipeline subtree of Config.
type Video struct {
	NVLegacy NVLegacy `yaml:"nv_legacy"`
	QSV      QSV      `yaml:"qsv"`
	AMD      AMD      `yaml:"amd"`
	SW       SW       `yaml:"sw"`
	VT       VT       `yaml:"vt"`

	// MinThreads is the floor on avcodec thread count per encode
	// session. The original resolves this per-platform; we resolve the
	// spec's Open Question by defaulting to 2 (see DESIGN.md).
	MinThreads int `yaml:"min_threads"`

	// MinimumFPSTarget floors the encode task's per-frame pop timeout
	// (max_frametime = 1000 / max(MinimumFPSTarget, client.framerate))
	// so a very low client framerate still gets a bounded wait rather
	// than blocking indefinitely between frames.
	MinimumFPSTarget int `yaml:"minimum_fps_target"`
}

// Config is the whole loaded configuration tree.
type Config struct {
	Video Video `yaml:"video"`

	// MinLogLevel mirrors config::sunshine.min_log_level. The catalog's
	// option producers receive only Video, so none of them reads it.
	MinLogLevel int `yaml:"min_log_level"`
}

// Default returns the configuration the registry falls back to when no
// file is loaded, with values chosen to match the original's defaults.
func Default() *Config {
	return &Config{
		MinLogLevel: 2,
		Video: Video{
			NVLegacy:   NVLegacy{Preset: "p4", Multipass: "fullres", AQ: 0, H264Coder: "auto"},
			QSV:        QSV{Preset: "medium", CAVLC: false, SlowHEVC: false},
			AMD:        AMD{Preanalysis: false, EnforceHRD: false, VBAQ: false},
			SW:         SW{SVTAV1Preset: "6", SWPreset: "superfast", SWTune: "zerolatency"},
			VT:               VT{AllowSW: false, RequireSW: false, Realtime: true},
			MinThreads:       2,
			MinimumFPSTarget: 10,
		},
	}
}

// Load reads a YAML config file at path and overlays it onto Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
