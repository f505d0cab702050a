// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package eventlog

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// partitioner assigns keyed messages to partitions by hash. Keyless (nil
// key) messages are spread round-robin; an empty key is a key like any other.
type partitioner struct {
	next atomic.Uint64
}

func (p *partitioner) partition(key []byte, n int) int {
	if n <= 1 {
		return 0
	}
	if key == nil {
		return int(p.next.Add(1) % uint64(n))
	}
	return int(xxhash.Sum64(key) % uint64(n))
}
