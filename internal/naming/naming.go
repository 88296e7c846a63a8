// Package naming generates names for components built without one.
//
// Generators are passed explicitly; there is no process-wide counter.
package naming

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator returns a fresh name for each call. Names are unique for the
// lifetime of the generator and never contain a '.'.
type Generator interface {
	Next(prefix string) string
}

// Counter numbers names per prefix: sys_1, sys_2, block_1, ... It is safe for
// concurrent use.
type Counter struct {
	mu   sync.Mutex
	next map[string]int
}

// NewCounter returns a counter starting at 1 for every prefix.
func NewCounter() *Counter {
	return &Counter{next: make(map[string]int)}
}

func (c *Counter) Next(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next == nil {
		c.next = make(map[string]int)
	}
	c.next[prefix]++
	return prefix + "_" + strconv.Itoa(c.next[prefix])
}

// UUID appends a random identifier to the prefix.
type UUID struct{}

func (UUID) Next(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return "n" + id
	}
	return prefix + "_" + id
}
