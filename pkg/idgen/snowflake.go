package idgen

import (
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// Snowflake ids
// ============================================================================
//
// 64 bits: sign(1) | ms since epoch(41) | worker(10) | sequence(12)
//
// Ids are unique per worker and roughly time ordered, which keeps the
// bet_no and transaction_no indexes append-mostly.

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
	now       func() int64
}

func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("idgen: worker id must be in [0,%d], got %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID, now: func() int64 { return time.Now().UnixMilli() }}, nil
}

var (
	defaultGenerator *Snowflake
	defaultMu        sync.Mutex
)

// Init sets the process-wide worker id. Call once at startup.
func Init(workerID int64) error {
	s, err := NewSnowflake(workerID)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultGenerator = s
	defaultMu.Unlock()
	return nil
}

func generator() *Snowflake {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultGenerator == nil {
		defaultGenerator, _ = NewSnowflake(1)
	}
	return defaultGenerator
}

func NextID() int64 {
	return generator().Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now < s.timestamp {
		// clock stepped back: keep issuing from the last timestamp
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = s.now()
			}
		}
	} else {
		s.sequence = 0
	}
	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// BetNo formats a bet number: BET + decimal snowflake id.
func BetNo() string {
	return fmt.Sprintf("BET%d", NextID())
}

// TransactionNo formats a wallet transaction number: TXN + decimal snowflake id.
func TransactionNo() string {
	return fmt.Sprintf("TXN%d", NextID())
}
