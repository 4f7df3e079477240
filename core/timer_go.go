//go:build !tinygo

package core

// loadTicks reads a tick counter (regular Go implementation)
func loadTicks(p *uint32) uint32 {
	return *p
}

// storeTicks writes a tick counter (regular Go implementation)
func storeTicks(p *uint32, ticks uint32) {
	*p = ticks
}
