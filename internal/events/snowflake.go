package events

import (
	"sync"
	"time"
)

// Snowflake is a time-ordered event id: millisecond timestamp in the high
// bits, a per-millisecond sequence in the low 12 bits. Ids generated by one
// process are strictly increasing.
type Snowflake int64

// epoch is 2020-01-01T00:00:00Z, keeping ids well clear of the sign bit.
const epoch = 1577836800000

var idGen struct {
	mu     sync.Mutex
	lastMs int64
	seq    int64
}

// NextID returns the next snowflake id.
func NextID() Snowflake {
	idGen.mu.Lock()
	defer idGen.mu.Unlock()

	ms := time.Now().UnixMilli() - epoch
	if ms < idGen.lastMs {
		ms = idGen.lastMs
	}
	if ms == idGen.lastMs {
		idGen.seq++
		if idGen.seq >= 1<<12 {
			// sequence exhausted for this millisecond, borrow the next one
			ms++
			idGen.seq = 0
		}
	} else {
		idGen.seq = 0
	}
	idGen.lastMs = ms
	return Snowflake(ms<<12 | idGen.seq)
}
