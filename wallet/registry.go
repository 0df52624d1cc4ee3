package wallet

import (
	"fmt"
	"sort"
	"sync"
)

// Registration describes a store backend linked into the binary.
//
// Backends register themselves in init():
//
//	wallet.MustRegister(wallet.Registration{ ... })
//
// The binary must import the backend package for registration to occur.
type Registration struct {
	Name        string
	Description string
	New         func() Backend
}

var (
	mu       sync.RWMutex
	backends = map[string]Registration{}
)

// Register registers a backend.
func Register(r Registration) error {
	if r.Name == "" {
		return fmt.Errorf("wallet: backend name is required")
	}
	if r.New == nil {
		return fmt.Errorf("wallet: backend %q missing New", r.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[r.Name]; exists {
		return fmt.Errorf("wallet: backend %q already registered", r.Name)
	}
	backends[r.Name] = r
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(r Registration) {
	if err := Register(r); err != nil {
		panic(err)
	}
}

// List returns the registered backends sorted by name.
func List() []Registration {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Registration, 0, len(backends))
	for _, r := range backends {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered backend names, sorted.
func Names() []string {
	rs := List()
	n := make([]string, 0, len(rs))
	for _, r := range rs {
		n = append(n, r.Name)
	}
	return n
}

// Lookup constructs the named backend.
func Lookup(name string) (Backend, error) {
	mu.RLock()
	r, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, NewError(CodeInvalidConfig, fmt.Sprintf("unknown store backend %q", name))
	}
	return r.New(), nil
}
