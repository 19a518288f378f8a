package cart

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"time"
)

// nowUnix returns the current wall-clock time, as a seconds-since-epoch
// Unix timestamp. It's a package var so tests can swap in a fake clock to
// drive RTC advancement deterministically.
var nowUnix = func() int64 { return time.Now().Unix() }

// rtcBlockLen is the size, in bytes, of the RTC state block this package
// appends after the raw RAM bytes in SaveRAM's output, so a battery file
// carries both external RAM and clock state across process restarts.
const rtcBlockLen = 20

// MBC3 implements ROM/RAM banking plus the MBC3 real-time clock.
// Banking behavior:
// - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank low 7 bits (0 maps to 1)
// - 4000-5FFF: RAM bank (0-3) or RTC register select (08-0C)
// - 6000-7FFF: latch clock on a 0x00->0x01 write
// - A000-BFFF: external RAM, or the latched RTC register selected above
// ROM: bank 0 fixed at 0000-3FFF; switchable 4000-7FFF uses bank (1..127)
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	ramBank    byte // 0..3 (others ignored to 0)
	rtcSelect  byte // raw value last written to 4000-5FFF (0x08-0x0C selects an RTC register)

	// Live RTC registers.
	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9-bit day counter
	rtcHalt                 bool
	rtcCarry                bool
	lastRTCWallSec          int64

	// Registers as of the last 0x00->0x01 latch write; reads while a
	// register is selected return these, not the live (ticking) values.
	latchedSec, latchedMin, latchedHour byte
	latchedDay                          uint16
	latchedHalt                         bool
	latchedCarry                        bool
	lastLatchWrite                      byte
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

// advanceRTC rolls the live RTC registers forward by the wall-clock time
// elapsed since the last call, carrying seconds into minutes into hours
// into the 9-bit day counter, and setting the carry flag on day overflow.
// It runs on every cartridge Read and Write, mirroring real MBC3 hardware ticking
// continuously rather than only when its registers are touched directly.
func (m *MBC3) advanceRTC() {
	now := nowUnix()
	elapsed := now - m.lastRTCWallSec
	m.lastRTCWallSec = now
	if m.rtcHalt || elapsed <= 0 {
		return
	}

	totalSec := int(m.rtcSec) + int(elapsed)
	m.rtcSec = byte(totalSec % 60)
	totalMin := int(m.rtcMin) + totalSec/60
	m.rtcMin = byte(totalMin % 60)
	totalHour := int(m.rtcHour) + totalMin/60
	m.rtcHour = byte(totalHour % 24)
	totalDay := int(m.rtcDay) + totalHour/24
	if totalDay >= 512 {
		m.rtcCarry = true
	}
	m.rtcDay = uint16(totalDay % 512)
}

func (m *MBC3) latch() {
	m.latchedSec, m.latchedMin, m.latchedHour = m.rtcSec, m.rtcMin, m.rtcHour
	m.latchedDay, m.latchedHalt, m.latchedCarry = m.rtcDay, m.rtcHalt, m.rtcCarry
}

func (m *MBC3) Read(addr uint16) byte {
	m.advanceRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.rtcSelect >= 0x08 && m.rtcSelect <= 0x0C {
			return m.readRTCReg()
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) readRTCReg() byte {
	switch m.rtcSelect {
	case 0x08:
		return m.latchedSec
	case 0x09:
		return m.latchedMin
	case 0x0A:
		return m.latchedHour
	case 0x0B:
		return byte(m.latchedDay & 0xFF)
	case 0x0C:
		v := byte((m.latchedDay >> 8) & 0x01)
		if m.latchedHalt {
			v |= 0x40
		}
		if m.latchedCarry {
			v |= 0x80
		}
		return v
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.advanceRTC()
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		m.rtcSelect = value
		if value <= 0x03 {
			m.ramBank = value & 0x03
		}
	case addr < 0x8000:
		if m.lastLatchWrite == 0x00 && value == 0x01 {
			m.latch()
		}
		m.lastLatchWrite = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.rtcSelect >= 0x08 && m.rtcSelect <= 0x0C {
			m.writeRTCReg(value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC3) writeRTCReg(value byte) {
	switch m.rtcSelect {
	case 0x08:
		m.rtcSec = value % 60
	case 0x09:
		m.rtcMin = value % 60
	case 0x0A:
		m.rtcHour = value % 24
	case 0x0B:
		m.rtcDay = (m.rtcDay &^ 0xFF) | uint16(value)
	case 0x0C:
		m.rtcDay = (m.rtcDay & 0xFF) | (uint16(value&0x01) << 8)
		m.rtcHalt = value&0x40 != 0
		if value&0x80 == 0 {
			m.rtcCarry = false
		}
	}
}

// BatteryBacked implementation. SaveRAM appends a fixed RTC state block
// after the raw RAM bytes so a .sav file round-trips the clock too.
func (m *MBC3) SaveRAM() []byte {
	m.advanceRTC()
	out := make([]byte, len(m.ram)+rtcBlockLen)
	copy(out, m.ram)
	b := out[len(m.ram):]
	b[0], b[1], b[2] = m.rtcSec, m.rtcMin, m.rtcHour
	binary.LittleEndian.PutUint16(b[3:5], m.rtcDay)
	b[5] = boolsToFlags(m.rtcHalt, m.rtcCarry)
	b[6], b[7], b[8] = m.latchedSec, m.latchedMin, m.latchedHour
	binary.LittleEndian.PutUint16(b[9:11], m.latchedDay)
	b[11] = boolsToFlags(m.latchedHalt, m.latchedCarry)
	binary.LittleEndian.PutUint64(b[12:20], uint64(m.lastRTCWallSec))
	return out
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(data) == 0 {
		return
	}
	ramPart := data
	if len(data) >= rtcBlockLen {
		ramPart = data[:len(data)-rtcBlockLen]
		b := data[len(data)-rtcBlockLen:]
		m.rtcSec, m.rtcMin, m.rtcHour = b[0], b[1], b[2]
		m.rtcDay = binary.LittleEndian.Uint16(b[3:5])
		m.rtcHalt, m.rtcCarry = flagsToBools(b[5])
		m.latchedSec, m.latchedMin, m.latchedHour = b[6], b[7], b[8]
		m.latchedDay = binary.LittleEndian.Uint16(b[9:11])
		m.latchedHalt, m.latchedCarry = flagsToBools(b[11])
		m.lastRTCWallSec = int64(binary.LittleEndian.Uint64(b[12:20]))
	}
	if len(m.ram) == 0 || len(ramPart) == 0 {
		return
	}
	n := len(ramPart)
	if n > len(m.ram) {
		n = len(m.ram)
	}
	copy(m.ram, ramPart[:n])
}

func boolsToFlags(halt, carry bool) byte {
	var v byte
	if halt {
		v |= 0x01
	}
	if carry {
		v |= 0x02
	}
	return v
}

func flagsToBools(v byte) (halt, carry bool) {
	return v&0x01 != 0, v&0x02 != 0
}

type mbc3State struct {
	RAM                        []byte
	RamEnabled                 bool
	RomBank, RamBank, RTCSel   byte
	RtcSec, RtcMin, RtcHour    byte
	RtcDay                     uint16
	RtcHalt, RtcCarry          bool
	LastRTCWallSec             int64
	LatchedSec, LatchedMin     byte
	LatchedHour                byte
	LatchedDay                 uint16
	LatchedHalt, LatchedCarry  bool
	LastLatchWrite             byte
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RAM: m.ram, RamEnabled: m.ramEnabled, RomBank: m.romBank, RamBank: m.ramBank, RTCSel: m.rtcSelect,
		RtcSec: m.rtcSec, RtcMin: m.rtcMin, RtcHour: m.rtcHour, RtcDay: m.rtcDay,
		RtcHalt: m.rtcHalt, RtcCarry: m.rtcCarry, LastRTCWallSec: m.lastRTCWallSec,
		LatchedSec: m.latchedSec, LatchedMin: m.latchedMin, LatchedHour: m.latchedHour,
		LatchedDay: m.latchedDay, LatchedHalt: m.latchedHalt, LatchedCarry: m.latchedCarry,
		LastLatchWrite: m.lastLatchWrite,
	})
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) > 0 && len(m.ram) == len(s.RAM) {
		copy(m.ram, s.RAM)
	}
	m.ramEnabled, m.romBank, m.ramBank, m.rtcSelect = s.RamEnabled, s.RomBank, s.RamBank, s.RTCSel
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.RtcSec, s.RtcMin, s.RtcHour, s.RtcDay
	m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = s.RtcHalt, s.RtcCarry, s.LastRTCWallSec
	m.latchedSec, m.latchedMin, m.latchedHour = s.LatchedSec, s.LatchedMin, s.LatchedHour
	m.latchedDay, m.latchedHalt, m.latchedCarry = s.LatchedDay, s.LatchedHalt, s.LatchedCarry
	m.lastLatchWrite = s.LastLatchWrite
}
