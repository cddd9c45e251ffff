// coredemo is a minimal wiring example tying the capture/encode core's
// packages together end to end: probe the catalog against the local
// displays, pick an encoder, and run the Multi-Display Coordinator
// until Ctrl-C. It is not a product surface — see SPEC_FULL.md §M.
//
// Grounded on the teacher's main.go: flag-parsed CLI knobs, a single
// startup log line, stdlib log throughout.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/streamcore/capture-core/internal/avenc"
	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/controller"
	"github.com/streamcore/capture-core/internal/coordinator"
	"github.com/streamcore/capture-core/internal/displaycap"
	"github.com/streamcore/capture-core/internal/eventbus"
	"github.com/streamcore/capture-core/internal/prober"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/touchport"
	"github.com/streamcore/capture-core/internal/types"
	"github.com/streamcore/capture-core/internal/vdd"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to built-in defaults)")
	outputNames := flag.String("outputs", "", "comma-separated display output names to capture (empty picks the first enumerated display)")
	preferredEncoder := flag.String("encoder", "", "preferred encoder name from the catalog; empty probes in catalog order")
	width := flag.Int("width", 1920, "client-requested width")
	height := flag.Int("height", 1080, "client-requested height")
	framerate := flag.Int("fps", 60, "client-requested framerate")
	virtual := flag.String("virtual-output", "", "output name that is backed by a virtual-display driver, if any")
	flag.Parse()

	log.Printf("coredemo: starting")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("coredemo: %v", err)
		}
		cfg = loaded
	}

	displays, err := displaycap.Enumerate()
	if err != nil {
		log.Fatalf("coredemo: enumerate displays: %v", err)
	}
	if err := prober.PrecheckDisplays(displays); err != nil {
		log.Fatalf("coredemo: %v", err)
	}
	if len(displays) == 0 {
		log.Fatalf("coredemo: no displays available")
	}

	factory := &avenc.Factory{VideoConfig: &cfg.Video}
	p := prober.New(factory, registry.ForPlatform(runtime.GOOS))
	selection, err := p.Select(prober.SelectionRequest{PreferredName: *preferredEncoder}, displays[0])
	if err != nil {
		log.Fatalf("coredemo: select encoder: %v", err)
	}
	log.Printf("coredemo: selected encoder %s", selection.Encoder.Name)

	var names []string
	if *outputNames != "" {
		names = strings.Split(*outputNames, ",")
	} else {
		names = []string{displays[0].Name()}
	}

	monitors := make([]coordinator.Monitor, 0, len(names))
	for i, name := range names {
		monitors = append(monitors, coordinator.Monitor{
			OutputName:   name,
			DisplayIndex: int16(i),
			Virtual:      *virtual != "" && name == *virtual,
			ClientConfig: types.ClientConfig{
				Width:        *width,
				Height:       *height,
				Framerate:    *framerate,
				VideoFormat:  types.VideoFormatH264,
				NumRefFrames: 1,
				DisplayIndex: int16(i),
			},
		})
	}

	shutdownBus := eventbus.New[bool]()
	closeWindowBus := eventbus.New[int16]()
	touchPortsBus := eventbus.New[*touchport.Set]()
	hdrBus := eventbus.New[types.HDRInfo]()

	c := &coordinator.Coordinator{
		Enumerate:    displaycap.Enumerate,
		Factory:      factory,
		Descriptor:   selection.Encoder,
		Capabilities: selection.Matrix[types.VideoFormatH264],
		VideoConfig:  &cfg.Video,
		Sink:         types.PacketSinkFunc(logPacket),
		NameCache:    controller.NewNameCache(4),
		HwdeviceType: selection.Encoder.Name,
		Ports:        touchport.NewSet(),
		TouchPorts:   touchPortsBus,
		HDR:          hdrBus,
		CloseWindow:  closeWindowBus,
		Shutdown:     shutdownBus,
		VDD:          vdd.NullService{},
	}

	go watchSignals(shutdownBus)

	if err := c.Run(monitors); err != nil {
		log.Fatalf("coredemo: %v", err)
	}
	log.Printf("coredemo: stopped")
}

func logPacket(p types.Packet) {
	log.Printf("coredemo: packet display=%d frame=%d bytes=%d idr=%v", p.DisplayIndex, p.FrameIndex, len(p.Data), p.IDR)
}

func watchSignals(shutdownBus *eventbus.Bus[bool]) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("coredemo: signal received, shutting down")
	shutdownBus.Publish(true)
}
