package emu

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace    bool // log each CPU step's PC and cycle count to stderr
	LimitFPS bool // not read by Machine; StepFrame runs as fast as it is called
}
