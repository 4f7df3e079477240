//go:build tinygo

package core

import "sync/atomic"

// loadTicks reads a tick counter shared with interrupt context
func loadTicks(p *uint32) uint32 {
	return atomic.LoadUint32(p)
}

// storeTicks writes a tick counter shared with interrupt context
func storeTicks(p *uint32, ticks uint32) {
	atomic.StoreUint32(p, ticks)
}
