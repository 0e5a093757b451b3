// Package fleet provides the seed server records the simulator starts from
// and receives per-tick write-backs.
package fleet

import (
	"sync"

	"fleetsim/internal/telemetry"
)

// Provider owns the base fleet records.
type Provider interface {
	Servers() []telemetry.BaseServer
	// Sync writes s back over the record with the same id. It reports
	// whether such a record existed.
	Sync(s telemetry.BaseServer) bool
}

// Static is an in-memory Provider.
type Static struct {
	mu      sync.Mutex
	servers []telemetry.BaseServer
	index   map[string]int
}

// NewStatic copies seeds into a new provider. Later duplicates of an id are ignored.
func NewStatic(seeds []telemetry.BaseServer) *Static {
	p := &Static{index: make(map[string]int, len(seeds))}
	for _, s := range seeds {
		if _, dup := p.index[s.ID]; dup {
			continue
		}
		p.index[s.ID] = len(p.servers)
		p.servers = append(p.servers, copyBase(s))
	}
	return p
}

// Servers returns a copy of every record in insertion order.
func (p *Static) Servers() []telemetry.BaseServer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]telemetry.BaseServer, len(p.servers))
	for i, s := range p.servers {
		out[i] = copyBase(s)
	}
	return out
}

// Sync implements Provider.
func (p *Static) Sync(s telemetry.BaseServer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.index[s.ID]
	if !ok {
		return false
	}
	p.servers[i] = copyBase(s)
	return true
}

// Add appends a record unless its id is already present.
func (p *Static) Add(s telemetry.BaseServer) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.index[s.ID]; dup {
		return false
	}
	p.index[s.ID] = len(p.servers)
	p.servers = append(p.servers, copyBase(s))
	return true
}

func copyBase(s telemetry.BaseServer) telemetry.BaseServer {
	s.Alerts = append([]telemetry.Alert(nil), s.Alerts...)
	return s
}
