package cart

import "testing"

func TestNewCartridge_UnsupportedTypeIsError(t *testing.T) {
	rom := buildROM("TEST", 0xFF, 0x00, 0x00, 32*1024) // 0xFF is not a known cart type
	_, err := NewCartridge(rom)
	if err == nil {
		t.Fatalf("expected error constructing an unsupported cartridge type, got nil")
	}
}

func TestNewCartridge_UnknownROMSizeCodeIsError(t *testing.T) {
	rom := buildROM("TEST", 0x00, 0x09, 0x00, 32*1024) // 0x09 is not an assigned ROM size code
	_, err := NewCartridge(rom)
	if err == nil {
		t.Fatalf("expected error on unknown ROM size code, got nil")
	}
}

func TestNewCartridge_UnknownRAMSizeCodeIsError(t *testing.T) {
	rom := buildROM("TEST", 0x00, 0x00, 0x06, 32*1024) // 0x06 is unassigned (valid codes stop at 0x05)
	_, err := NewCartridge(rom)
	if err == nil {
		t.Fatalf("expected error on unknown RAM size code, got nil")
	}
}

func TestNewCartridge_ROMOnlyBanksSucceeds(t *testing.T) {
	rom := buildROM("TEST", 0x00, 0x00, 0x00, 32*1024)
	c, err := NewCartridge(rom)
	if err != nil {
		t.Fatalf("NewCartridge error: %v", err)
	}
	if v := c.Read(0x0134); v != 'T' {
		t.Fatalf("ROM-only read at title offset got %#02x want 'T'", v)
	}
}

func TestNewCartridge_MBC1RoundTripsSaveState(t *testing.T) {
	rom := buildROM("TEST", 0x01, 0x01, 0x02, 64*1024)
	c, err := NewCartridge(rom)
	if err != nil {
		t.Fatalf("NewCartridge error: %v", err)
	}
	c.Write(0x0000, 0x0A) // enable RAM
	c.Write(0xA000, 0x42) // write a byte into external RAM bank 0
	snap := c.SaveState()

	c2, err := NewCartridge(rom)
	if err != nil {
		t.Fatalf("NewCartridge error: %v", err)
	}
	c2.LoadState(snap)
	if v := c2.Read(0xA000); v != 0x42 {
		t.Fatalf("RAM byte after LoadState got %#02x want 0x42", v)
	}
}
