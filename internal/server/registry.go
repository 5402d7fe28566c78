package server

import (
	"maps"
	"slices"

	"github.com/codefionn/sqmean/internal/conn"
)

// registry holds the live connections. Only the reactor goroutine touches it.
type registry struct {
	conns map[uint64]*conn.Conn
}

func newRegistry() *registry {
	return &registry{conns: make(map[uint64]*conn.Conn)}
}

func (r *registry) add(c *conn.Conn) {
	r.conns[c.ID()] = c
}

// remove deletes id and reports whether it was present.
func (r *registry) remove(id uint64) bool {
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

func (r *registry) len() int {
	return len(r.conns)
}

// ordered returns the connections by ascending id, which is accept order.
func (r *registry) ordered() []*conn.Conn {
	out := make([]*conn.Conn, 0, len(r.conns))
	for _, id := range slices.Sorted(maps.Keys(r.conns)) {
		out = append(out, r.conns[id])
	}
	return out
}

func (r *registry) allStopped() bool {
	for _, c := range r.conns {
		if !c.IsStopped() {
			return false
		}
	}
	return true
}

func (r *registry) clear() {
	clear(r.conns)
}
