// ABOUTME: Entry point for the AudioLink bridge
// ABOUTME: Parses CLI flags, wires the pipelines, TUI, and status server
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AudioLink-Project/audiolink-go/internal/app"
	"github.com/AudioLink-Project/audiolink-go/internal/discovery"
	"github.com/AudioLink-Project/audiolink-go/internal/metrics"
	"github.com/AudioLink-Project/audiolink-go/internal/statusd"
	"github.com/AudioLink-Project/audiolink-go/internal/ui"
	"github.com/AudioLink-Project/audiolink-go/internal/version"
	"github.com/AudioLink-Project/audiolink-go/pkg/bridge"
	"github.com/AudioLink-Project/audiolink-go/pkg/protocol"
)

var (
	serverAddr    = flag.String("server", "", "Desktop peer host or IP (skip mDNS discovery)")
	audioPort     = flag.Int("audio-port", 5000, "Desktop audio stream port")
	micPort       = flag.Int("mic-port", 5001, "Microphone upstream port")
	audioEnabled  = flag.Bool("audio", true, "Enable desktop audio playback")
	micEnabled    = flag.Bool("mic", true, "Enable microphone capture")
	outputBackend = flag.String("output", "oto", "Playback backend: oto or malgo")
	statusAddr    = flag.String("status-addr", "127.0.0.1:5080", "Status server address, empty to disable")
	logFile       = flag.String("log-file", "audiolink.log", "Log file path")
	noTUI         = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file so the display stays clean
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	// TUI setup
	var tuiProg *tea.Program
	var ctrl *ui.Control

	if useTUI {
		ctrl = ui.NewControl()
		tuiProg, err = ui.Run(ctrl)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go tuiProg.Run()
	}

	updateTUI := func(msg tea.Msg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	// Resolve the desktop peer: explicit flag first, mDNS otherwise.
	peerHost := *serverAddr
	if peerHost == "" {
		log.Printf("No peer given, browsing mDNS for a desktop...")
		disc := discovery.NewManager()
		disc.Browse()

		select {
		case peer := <-disc.Peers():
			peerHost = peer.Host
			log.Printf("Discovered desktop peer %s at %s", peer.Name, peer.Host)
		case <-time.After(10 * time.Second):
			disc.Stop()
			log.Fatalf("No desktop peer found after 10 seconds; use -server")
		}
		disc.Stop()
	}
	updateTUI(ui.PeerMsg{Addr: peerHost})

	// Metrics and status fan-out
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var status *statusd.Server
	if *statusAddr != "" {
		status = statusd.New(*statusAddr, registry)
		go func() {
			if err := status.Run(); err != nil {
				log.Printf("Status server stopped: %v", err)
			}
		}()
	}

	bridgeApp, err := app.New(app.Config{
		Host:            peerHost,
		AudioPort:       *audioPort,
		MicPort:         *micPort,
		PlaybackEnabled: *audioEnabled,
		CaptureEnabled:  *micEnabled,
		OutputBackend:   *outputBackend,
		OnStatus: func(s bridge.Status) {
			m.ObserveStatus(s)
			if status != nil {
				status.Publish(s)
			}
			updateTUI(ui.StatusMsg{Pipeline: s.Pipeline, State: string(s.State), Detail: s.Detail})
		},
		OnFormat: func(h protocol.Header) {
			updateTUI(ui.FormatMsg{
				Pipeline:   "playback",
				SampleRate: int(h.SampleRate),
				Channels:   int(h.Channels),
			})
		},
	})
	if err != nil {
		log.Fatalf("Failed to create bridge: %v", err)
	}

	if err := bridgeApp.Start(); err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}

	// Capture format is fixed locally; show it immediately.
	capFormat := bridge.DefaultCaptureFormat()
	updateTUI(ui.FormatMsg{
		Pipeline:   "capture",
		SampleRate: int(capFormat.SampleRate),
		Channels:   int(capFormat.Channels),
	})

	if ctrl != nil {
		go handleControls(bridgeApp, ctrl)
	}

	go statsUpdateLoop(bridgeApp, m, updateTUI)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if ctrl != nil {
		select {
		case <-ctrl.Quit:
			log.Printf("Received quit signal from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
		}
	} else {
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	bridgeApp.Close()

	if status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := status.Shutdown(ctx); err != nil {
			log.Printf("Error stopping status server: %v", err)
		}
	}

	log.Printf("Bridge stopped")
}

// handleControls processes volume and pipeline toggles from the TUI
func handleControls(b *app.Bridge, ctrl *ui.Control) {
	for {
		select {
		case vol := <-ctrl.Volume:
			log.Printf("Volume change: %d%%, muted=%v", vol.Volume, vol.Muted)
			b.SetVolume(vol.Volume, vol.Muted)
		case toggle := <-ctrl.Toggles:
			if err := b.Toggle(toggle.Pipeline); err != nil {
				log.Printf("Toggle %s failed: %v", toggle.Pipeline, err)
			}
		case <-ctrl.Quit:
			return
		}
	}
}

// statsUpdateLoop periodically pushes pipeline counters to the TUI and
// metrics registry
func statsUpdateLoop(b *app.Bridge, m *metrics.Metrics, updateTUI func(tea.Msg)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	for {
		select {
		case <-runtimeStatsTicker.C:
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			updateTUI(ui.DebugMsg{
				Goroutines: runtime.NumGoroutine(),
				MemAlloc:   mem.Alloc,
			})

		case <-ticker.C:
			for pipeline, stats := range b.Stats() {
				m.ObserveStats(pipeline, stats)
				updateTUI(ui.StatsMsg{
					Pipeline:   pipeline,
					BytesMoved: stats.BytesMoved,
					Reconnects: stats.Reconnects,
					Stalls:     stats.Stalls,
				})
			}
		}
	}
}
