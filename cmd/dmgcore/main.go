package main

import (
	"bytes"
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/presenter"
)

type cliFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string
	Trace   bool
	SaveRAM bool // persist battery RAM next to ROM (.sav)

	// headless / test-ROM automation
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex (e.g., "1a2b3c4d")
	Auto     bool   // watch serial output for "Passed"/"Failed", exit 0/1
	Timeout  time.Duration
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional DMG boot ROM")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "dmgcore", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "CPU trace log")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.BoolVar(&f.Auto, "auto", false, "headless: watch serial output for Passed/Failed and exit 0/1")
	flag.DurationVar(&f.Timeout, "timeout", 0, "headless: optional wall-clock timeout (e.g. 30s); 0 disables")
	flag.Parse()
	return f
}

// runHeadless drives the machine frame-by-frame without a window, for CI
// and test-ROM automation. With -auto it watches the serial port for a
// Blargg-style "Passed"/"Failed" marker and exits 0/1 accordingly; without
// it, it runs a fixed number of frames and optionally checks the resulting
// framebuffer's CRC32.
func runHeadless(m *emu.Machine, f cliFlags) error {
	frames := f.Frames
	if frames <= 0 {
		frames = 1
	}

	var serial bytes.Buffer
	if f.Auto {
		m.SetSerialWriter(&serial)
	}

	start := time.Now()
	var deadline time.Time
	if f.Timeout > 0 {
		deadline = start.Add(f.Timeout)
	}

	for i := 0; i < frames; i++ {
		m.StepFrameNoRender()
		if f.Auto {
			out := serial.String()
			low := strings.ToLower(out)
			if strings.Contains(low, "passed") {
				log.Printf("serial reported Passed after %d frames (%s)", i+1, time.Since(start).Truncate(time.Millisecond))
				return nil
			}
			if strings.Contains(low, "failed") {
				log.Printf("serial reported Failed after %d frames:\n%s", i+1, out)
				os.Exit(1)
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("timeout after %s", time.Since(start).Truncate(time.Millisecond))
		}
	}
	if f.Auto {
		return fmt.Errorf("timeout waiting for serial Passed/Failed after %d frames; last output:\n%s", frames, serial.String())
	}

	m.StepFrame() // one rendered frame for the CRC/PNG checks below
	dur := time.Since(start)
	fb := m.Framebuffer() // RGBA 160x144*4
	crc := crc32.ChecksumIEEE(fb)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if f.PNGOut != "" {
		if err := saveFramePNG(fb, 160, 144, f.PNGOut); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", f.PNGOut)
	}

	if f.Expect != "" {
		want := strings.TrimPrefix(strings.ToLower(f.Expect), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	f := parseFlags()
	var rom []byte
	if f.ROMPath != "" {
		rom = mustRead(f.ROMPath)
	}
	boot := mustRead(f.BootROM)

	if len(rom) >= 0x150 {
		if h, err := cart.ParseHeader(rom); err == nil {
			log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
		}
	}

	m := emu.New(emu.Config{Trace: f.Trace})
	if len(boot) >= 0x100 {
		m.SetBootROM(boot)
	}
	if len(rom) > 0 {
		if f.ROMPath != "" {
			if abs, err := filepath.Abs(f.ROMPath); err == nil {
				if err := m.LoadROMFromFile(abs); err != nil {
					log.Fatalf("load cart: %v", err)
				}
			} else if err := m.LoadROMFromFile(f.ROMPath); err != nil {
				log.Fatalf("load cart: %v", err)
			}
		} else if err := m.LoadCartridge(rom, boot); err != nil {
			log.Fatalf("load cart: %v", err)
		}
	}

	var savPath string
	if f.SaveRAM && f.ROMPath != "" {
		savPath = strings.TrimSuffix(f.ROMPath, ".gb") + ".sav"
		if data, err := os.ReadFile(savPath); err == nil {
			if m.LoadBattery(data) {
				log.Printf("loaded save RAM: %s (%d bytes)", savPath, len(data))
			}
		}
	}

	if f.Headless {
		if err := runHeadless(m, f); err != nil {
			log.Fatal(err)
		}
		writeBattery(m, f, savPath)
		return
	}

	app := presenter.NewApp(presenter.Config{Title: f.Title, Scale: f.Scale}, m)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
	writeBattery(m, f, savPath)
}

func writeBattery(m *emu.Machine, f cliFlags, savPath string) {
	if !f.SaveRAM {
		return
	}
	if savPath == "" && m.ROMPath() != "" && strings.HasSuffix(strings.ToLower(m.ROMPath()), ".gb") {
		savPath = strings.TrimSuffix(m.ROMPath(), ".gb") + ".sav"
	}
	if savPath == "" {
		return
	}
	if data, ok := m.SaveBattery(); ok {
		if err := os.WriteFile(savPath, data, 0644); err == nil {
			log.Printf("wrote %s", savPath)
		}
	}
}
