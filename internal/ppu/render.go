package ppu

// renderScanline composes the BG, window, and sprite layers for the
// current line (p.ly) and writes the resulting display bytes into the
// framebuffer. It runs once per line at mode-3 entry, mirroring the point
// at which real hardware starts feeding pixels out of the FIFO.
func (p *PPU) renderScanline() {
	ly := p.ly
	if ly >= 144 {
		return
	}

	bgMapBase := uint16(0x9800)
	if p.lcdc&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	winMapBase := uint16(0x9800)
	if p.lcdc&0x40 != 0 {
		winMapBase = 0x9C00
	}
	tileData8000 := p.lcdc&0x10 != 0

	var bgci [160]byte
	if p.lcdc&0x01 != 0 {
		bgci = RenderBGScanlineUsingFetcher(p, bgMapBase, tileData8000, p.scx, p.scy, ly)
	}

	if p.lcdc&0x20 != 0 && p.wy <= ly {
		wxStart := int(p.wx) - 7
		if wxStart < 160 {
			winLine := p.LineRegs(int(ly)).WinLine
			winRow := RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, winLine)
			start := wxStart
			if start < 0 {
				start = 0
			}
			for x := start; x < 160; x++ {
				bgci[x] = winRow[x]
			}
		}
	}

	var objColors [160]byte
	var objUseOBP1 [160]bool
	var objCovered [160]bool
	if p.lcdc&0x02 != 0 {
		sprites := parseOAMSprites(p.oam[:])
		objSize8x16 := p.lcdc&0x04 != 0
		objColors, objUseOBP1 = composeSpriteLineWithPalette(p, sprites, ly, bgci, objSize8x16)
		for x := 0; x < 160; x++ {
			objCovered[x] = objColors[x] != 0
		}
	}

	row := int(ly) * 160
	for x := 0; x < 160; x++ {
		if objCovered[x] {
			pal := p.obp0
			if objUseOBP1[x] {
				pal = p.obp1
			}
			p.fb[row+x] = applyPalette(pal, objColors[x])
			continue
		}
		p.fb[row+x] = applyPalette(p.bgp, bgci[x])
	}
}
