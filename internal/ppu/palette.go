package ppu

// shade maps a 2-bit DMG color index (0..3) to a grayscale display byte,
// lightest to darkest, matching the original hardware's four-shade LCD.
var shade = [4]byte{0xFF, 0xAA, 0x55, 0x00}

// applyPalette resolves a color index through a palette register (BGP,
// OBP0, or OBP1), each of which maps index N to a 2-bit shade in bits
// [2N+1:2N], and returns the display byte for that shade.
func applyPalette(reg byte, ci byte) byte {
	s := (reg >> (ci * 2)) & 0x03
	return shade[s]
}
