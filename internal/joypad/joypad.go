// Package joypad models the DMG button matrix: two 4-bit rows (D-pad and
// action buttons) multiplexed onto the low nibble of JOYP (0xFF00) by a
// 2-bit select field written by the program.
package joypad

// Button bitmask values for SetButtons. Bits set mean "currently pressed".
// D-pad buttons use bits 0-3 and action buttons bits 4-7, each in its row's
// wire order, so bit n of a row maps to JOYP bit n (n mod 4 for the action row).
const (
	Right byte = 1 << 0
	Left  byte = 1 << 1
	Up    byte = 1 << 2
	Down  byte = 1 << 3
	A     byte = 1 << 4
	B     byte = 1 << 5
	Select byte = 1 << 6
	Start  byte = 1 << 7
)

// Joypad holds the pressed-button state and the select nibble last written
// to JOYP. Button bits are active-low on the bus, but callers of SetButtons
// use active-high "pressed" semantics for convenience.
type Joypad struct {
	selectNibble byte // bits 5-4 as last written to 0xFF00, other bits 0
	pressed      byte // Button bitmask, 1 = pressed
	lastLow4     byte // previous computed active-low lower nibble, for edge detection
}

// New returns a Joypad with no buttons held and both select lines released.
func New() *Joypad {
	return &Joypad{selectNibble: 0x30, lastLow4: 0x0F}
}

// WriteSelect updates the 2-bit select field (bits 5-4 of a JOYP write).
// Reports whether the update produced a 1->0 transition on the multiplexed
// lower nibble, i.e. whether a joypad interrupt should be requested.
func (j *Joypad) WriteSelect(value byte) (irq bool) {
	j.selectNibble = value & 0x30
	return j.recompute()
}

// SetButtons replaces the pressed-button mask (bits from the Button
// constants; a set bit means pressed). Reports whether the update produced
// a joypad interrupt (any multiplexed line fell 1->0).
func (j *Joypad) SetButtons(mask byte) (irq bool) {
	j.pressed = mask
	return j.recompute()
}

// Read returns the JOYP byte as the CPU would see it: bits 7-6 read as 1,
// bits 5-4 reflect the last-written select, bits 3-0 reflect whichever
// selected row(s) are active, active-low.
func (j *Joypad) Read() byte {
	return 0xC0 | j.selectNibble | 0x0F&^j.low4()
}

func (j *Joypad) low4() byte {
	var low byte
	if j.selectNibble&0x10 == 0 { // P14 selects D-pad
		if j.pressed&Right != 0 {
			low |= 0x01
		}
		if j.pressed&Left != 0 {
			low |= 0x02
		}
		if j.pressed&Up != 0 {
			low |= 0x04
		}
		if j.pressed&Down != 0 {
			low |= 0x08
		}
	}
	if j.selectNibble&0x20 == 0 { // P15 selects action buttons
		if j.pressed&A != 0 {
			low |= 0x01
		}
		if j.pressed&B != 0 {
			low |= 0x02
		}
		if j.pressed&Select != 0 {
			low |= 0x04
		}
		if j.pressed&Start != 0 {
			low |= 0x08
		}
	}
	return low
}

func (j *Joypad) recompute() (irq bool) {
	newLow4 := 0x0F &^ j.low4()
	falling := j.lastLow4 &^ newLow4 // bits that were 1, now 0
	j.lastLow4 = newLow4
	return falling != 0
}

// State is a snapshot for save/load.
type State struct {
	SelectNibble byte
	Pressed      byte
	LastLow4     byte
}

func (j *Joypad) Save() State { return State{j.selectNibble, j.pressed, j.lastLow4} }
func (j *Joypad) Load(s State) {
	j.selectNibble, j.pressed, j.lastLow4 = s.SelectNibble, s.Pressed, s.LastLow4
}
