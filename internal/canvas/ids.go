package canvas

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Counter is a monotonically increasing "<prefix>-N" id source.
// Seeding above the highest seed-content id keeps fresh ids from colliding
// with pre-existing elements.
type Counter struct {
	prefix string
	next   atomic.Int64
}

// NewCounter returns a counter whose first id is "<prefix>-<start>".
func NewCounter(prefix string, start int64) *Counter {
	c := &Counter{prefix: prefix}
	c.next.Store(start)
	return c
}

func (c *Counter) NextID() string {
	n := c.next.Add(1) - 1
	return fmt.Sprintf("%s-%d", c.prefix, n)
}

// Observe advances the counter past id when id uses the same prefix.
// Used for ids created by remote participants.
func (c *Counter) Observe(id string) {
	rest, ok := strings.CutPrefix(id, c.prefix+"-")
	if !ok {
		return
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return
	}
	for {
		cur := c.next.Load()
		if n < cur {
			return
		}
		if c.next.CompareAndSwap(cur, n+1) {
			return
		}
	}
}
