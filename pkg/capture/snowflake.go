package capture

import (
	"sync"
	"time"
)

// Snowflake hands out time-ordered 63-bit ids:
// 41 bits of milliseconds since epoch | 10 bits of worker | 12 bits of sequence.
type Snowflake struct {
	mu       sync.Mutex
	epoch    int64
	workerID int64
	lastMs   int64
	sequence int64
}

const (
	workerIDBits   = 10
	sequenceBits   = 12
	timestampShift = workerIDBits + sequenceBits
	sequenceMask   = 1<<sequenceBits - 1
	maxWorkerID    = 1<<workerIDBits - 1
)

// NewSnowflake creates an id generator. Out of range worker ids become 0.
func NewSnowflake(epoch time.Time, workerID int64) *Snowflake {
	if workerID < 0 || workerID > maxWorkerID {
		workerID = 0
	}
	return &Snowflake{epoch: epoch.UnixMilli(), workerID: workerID}
}

// NextID returns an id greater than every id returned before it
func (s *Snowflake) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.lastMs {
		// Clock went backwards; stay on the last millisecond
		now = s.lastMs
	}

	if now == s.lastMs {
		s.sequence = (s.sequence + 1) & sequenceMask
		if s.sequence == 0 {
			for now <= s.lastMs {
				time.Sleep(100 * time.Microsecond)
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastMs = now

	return (now-s.epoch)<<timestampShift | s.workerID<<sequenceBits | s.sequence
}
