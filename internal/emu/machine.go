package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
)

// cyclesPerFrame is the DMG's fixed per-frame T-cycle budget: 154 scanlines
// of 456 dots each, whether or not any of them are visible.
const cyclesPerFrame = 154 * 456

// Buttons is the host-facing joypad state for one frame.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine is the top-level emulated DMG: cartridge, bus, CPU, and the
// scheduler that drives them one frame at a time.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath  string
	romTitle string
	bootROM  []byte

	fb []byte // RGBA 160x144*4, derived from the PPU's grayscale framebuffer each StepFrame

	cycleAcc int // T-cycles run toward the current frame, carried across frames
}

func New(cfg Config) *Machine {
	return &Machine{cfg: cfg, fb: make([]byte, 160*144*4)}
}

// LoadCartridge wires a fresh Bus/CPU around rom's cartridge. boot, if at
// least 256 bytes, is mapped at 0x0000 until the game disables it; an empty
// boot falls back to whatever SetBootROM previously supplied, and failing
// that the CPU is seeded with the documented DMG post-boot register state.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		return fmt.Errorf("emu: load cartridge: %w", err)
	}
	b := bus.NewWithCartridge(c)
	m.bus = b
	m.cpu = cpu.New(b)

	if len(boot) == 0 {
		boot = m.bootROM
	}
	if len(boot) >= 0x100 {
		m.bootROM = boot
		b.SetBootROM(boot)
		m.cpu.SetPC(0x0000)
	} else {
		m.cpu.ResetNoBoot()
		m.cpu.SetPC(0x0100)
	}

	m.romTitle = ""
	if h, err := cart.ParseHeader(rom); err == nil {
		m.romTitle = h.Title
	}
	return nil
}

// LoadROMFromFile reads path and loads it as the current cartridge,
// recording path so SaveBattery's caller can derive a sibling .sav file.
func (m *Machine) LoadROMFromFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("emu: read ROM: %w", err)
	}
	if err := m.LoadCartridge(rom, nil); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// SetBootROM stashes a DMG boot ROM image to map on the next LoadCartridge
// (or immediately, if a cartridge is already loaded).
func (m *Machine) SetBootROM(data []byte) {
	m.bootROM = data
	if m.bus != nil {
		m.bus.SetBootROM(data)
	}
}

// SetSerialWriter attaches a sink for bytes the game writes over the serial
// port (the channel Blargg-style test ROMs use to report pass/fail).
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

func (m *Machine) ROMPath() string  { return m.romPath }
func (m *Machine) ROMTitle() string { return m.romTitle }

// SetButtons applies the current frame's joypad state.
func (m *Machine) SetButtons(b Buttons) {
	if m.bus != nil {
		m.bus.SetJoypadState(b.mask())
	}
}

// StepFrame runs one frame's worth of CPU/timer/PPU ticks and refreshes the
// RGBA framebuffer.
func (m *Machine) StepFrame() {
	m.runFrame()
	m.blit()
}

// StepFrameNoRender runs one frame without touching the RGBA framebuffer,
// for headless test-ROM automation that only cares about serial output.
func (m *Machine) StepFrameNoRender() {
	m.runFrame()
}

func (m *Machine) runFrame() {
	if m.bus == nil || m.cpu == nil {
		return
	}
	// cpu.Step ticks the bus (timers, PPU, DMA) by its own cycle count.
	for m.cycleAcc < cyclesPerFrame {
		pc := m.cpu.PC
		cycles := m.cpu.Step()
		if m.cfg.Trace {
			log.Printf("pc=%#04x cycles=%d", pc, cycles)
		}
		m.cycleAcc += cycles
	}
	// Carry any overshoot into the next frame to keep frame phase.
	m.cycleAcc -= cyclesPerFrame
}

// blit expands the PPU's one-byte-per-pixel grayscale framebuffer into RGBA
// for presenters that want a standard image surface.
func (m *Machine) blit() {
	if m.bus == nil {
		return
	}
	src := m.bus.PPU().Framebuffer()
	for i, v := range src {
		o := i * 4
		m.fb[o+0] = v
		m.fb[o+1] = v
		m.fb[o+2] = v
		m.fb[o+3] = 0xFF
	}
}

// Framebuffer returns the last frame as RGBA8888, 160x144, row-major.
func (m *Machine) Framebuffer() []byte { return m.fb }

// LoadBattery restores external cartridge RAM from a .sav payload. Returns
// false if the current cartridge has no battery-backed RAM.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns the current cartridge's external RAM for persisting
// to a .sav file. ok is false if the cartridge has no battery-backed RAM.
func (m *Machine) SaveBattery() (data []byte, ok bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, isBattery := m.bus.Cart().(cart.BatteryBacked)
	if !isBattery {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// machineState is the gob envelope for full save states: CPU registers plus
// the Bus's own encoded state (which in turn carries PPU and cartridge
// state), so one opaque blob round-trips the whole machine.
type machineState struct {
	A, F       byte
	B, C       byte
	D, E       byte
	H, L       byte
	SP, PC     uint16
	IME        bool
	BusState   []byte
}

// SaveState serializes the full machine (CPU + bus + PPU + cartridge) to an
// opaque blob suitable for writing to disk.
func (m *Machine) SaveState() []byte {
	if m.bus == nil || m.cpu == nil {
		return nil
	}
	s := machineState{
		A: m.cpu.A, F: m.cpu.F,
		B: m.cpu.B, C: m.cpu.C,
		D: m.cpu.D, E: m.cpu.E,
		H: m.cpu.H, L: m.cpu.L,
		SP: m.cpu.SP, PC: m.cpu.PC,
		IME:      m.cpu.IME,
		BusState: m.bus.SaveState(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil
	}
	return buf.Bytes()
}

// LoadState restores a blob produced by SaveState. Invalid data is ignored.
func (m *Machine) LoadState(data []byte) {
	if m.bus == nil || m.cpu == nil {
		return
	}
	var s machineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.cpu.A, m.cpu.F = s.A, s.F
	m.cpu.B, m.cpu.C = s.B, s.C
	m.cpu.D, m.cpu.E = s.D, s.E
	m.cpu.H, m.cpu.L = s.H, s.L
	m.cpu.SP, m.cpu.PC = s.SP, s.PC
	m.cpu.IME = s.IME
	m.bus.LoadState(s.BusState)
}
