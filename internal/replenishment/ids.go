package replenishment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Id prefixes for generated entities.
const (
	PrefixPurchaseOrder = "PO"
	PrefixReturn        = "RT"
	PrefixReminder      = "REM"
)

// IDGenerator produces identifiers for new entities.
type IDGenerator interface {
	NextID(ctx context.Context, prefix string) (string, error)
}

// Counter hands out monotonically increasing values per key.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// SequenceGenerator formats ids as PREFIX-YYYYMMDD-NNN.
type SequenceGenerator struct {
	counter Counter
	clock   func() time.Time
}

// NewSequenceGenerator builds a generator. A nil clock uses time.Now in UTC.
func NewSequenceGenerator(counter Counter, clock func() time.Time) *SequenceGenerator {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &SequenceGenerator{counter: counter, clock: clock}
}

// NextID implements IDGenerator.
func (g *SequenceGenerator) NextID(ctx context.Context, prefix string) (string, error) {
	seq, err := g.counter.Incr(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("replenishment: next %s sequence: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, g.clock().Format("20060102"), seq), nil
}

// MemoryCounter is a process-local Counter.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryCounter starts the counter at the given offsets, so seeded records
// keep their sequence numbers.
func NewMemoryCounter(start map[string]int64) *MemoryCounter {
	values := make(map[string]int64, len(start))
	for k, v := range start {
		values[k] = v
	}
	return &MemoryCounter{values: values}
}

// Incr implements Counter.
func (c *MemoryCounter) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key]++
	return c.values[key], nil
}

// UUIDGenerator produces PREFIX-<uuid> ids.
type UUIDGenerator struct{}

// NextID implements IDGenerator.
func (UUIDGenerator) NextID(_ context.Context, prefix string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("replenishment: new uuid: %w", err)
	}
	if prefix == "" {
		return id.String(), nil
	}
	return prefix + "-" + id.String(), nil
}
