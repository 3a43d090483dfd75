// Package board maps human readable board ids to unique ids and node
// address stacks. The mapping is loaded from ini board-table files and
// queried by the high level command layer.
package board

import (
	"sync"

	bidib "github.com/trinnguyen/libbidib"
)

// Board is one configured node of the layout.
type Board struct {
	Name      string
	UniqueID  uint64
	Addr      bidib.Address
	Connected bool
}

// Registry holds all configured boards, queryable by name and address.
type Registry struct {
	mu     sync.Mutex
	byName map[string]*Board
	byAddr map[bidib.Address]*Board
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Board),
		byAddr: make(map[bidib.Address]*Board),
	}
}

// Add registers a board, replacing a previous board of the same name.
func (r *Registry) Add(b Board) {
	r.mu.Lock()
	defer r.mu.Unlock()
	board := b
	r.byName[board.Name] = &board
	r.byAddr[board.Addr] = &board
}

// Lookup returns the board configured under name.
func (r *Registry) Lookup(name string) (Board, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	board, ok := r.byName[name]
	if !ok {
		return Board{}, false
	}
	return *board, true
}

// LookupAddr returns the board configured for addr.
func (r *Registry) LookupAddr(addr bidib.Address) (Board, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	board, ok := r.byAddr[addr]
	if !ok {
		return Board{}, false
	}
	return *board, true
}

// SetConnected flags the board at addr as connected or lost.
func (r *Registry) SetConnected(addr bidib.Address, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if board, ok := r.byAddr[addr]; ok {
		board.Connected = connected
	}
}

// Names returns the configured board names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
