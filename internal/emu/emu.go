// Package emu wires together the cartridge, bus, and CPU into a runnable
// DMG machine. See machine.go for the Machine type and its frame scheduler.
package emu
