package presenter

// Config is the host window's own settings; it has no bearing on
// emulation behavior, only on how the machine's framebuffer and joypad
// state get plugged into the OS.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "dmgcore"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
