package ppu

import "testing"

func TestComposeSpriteLinePriorityAndTransparency(t *testing.T) {
	mem := mockVRAM{}
	// Sprite tile with a single opaque leftmost pixel at bit7: lo=0x01<<7 -> 0x80, hi=0
	base := uint16(0x8000)
	mem[base+0] = 0x80
	mem[base+1] = 0x00
	sprites := []Sprite{{X: 10, Y: 5, Tile: 0, Attr: 0, OAMIndex: 0}}
	var bgci [160]byte
	out := ComposeSpriteLine(mem, sprites, 5, bgci, false)
	if out[10] == 0 {
		t.Fatalf("expected sprite pixel at x=10")
	}
	// With priority behind BG and bgci non-zero, pixel must be skipped
	sprites[0].Attr = 1 << 7
	bgci[10] = 1
	out = ComposeSpriteLine(mem, sprites, 5, bgci, false)
	if out[10] != 0 {
		t.Fatalf("expected sprite pixel to be hidden behind BG")
	}
}

func TestComposeSpriteLineTieBreaker(t *testing.T) {
	mem := mockVRAM{}
	// Two sprites share the same X (a genuine tie), each drawing a distinct
	// solid color so the winner is identifiable from the output pixel, not
	// just from whether a pixel exists at all. Tile 0 -> color index 1
	// (lo=0xFF, hi=0x00); tile 1 -> color index 3 (lo=0xFF, hi=0xFF).
	base := uint16(0x8000)
	mem[base+0] = 0xFF
	mem[base+1] = 0x00
	mem[base+16] = 0xFF
	mem[base+17] = 0xFF
	s0 := Sprite{X: 20, Y: 0, Tile: 0, Attr: 0, OAMIndex: 5}
	s1 := Sprite{X: 20, Y: 0, Tile: 1, Attr: 0, OAMIndex: 3}
	var bgci [160]byte
	out := ComposeSpriteLine(mem, []Sprite{s0, s1}, 0, bgci, false)
	// Same X: lowest OAM index wins, so s1 (index 3, color 3) should draw,
	// not s0 (index 5, color 1).
	if out[20] != 3 {
		t.Fatalf("expected lower-OAM-index sprite (color 3) to win the tie at x=20, got %d", out[20])
	}
}
