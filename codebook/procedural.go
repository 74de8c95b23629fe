package codebook

import (
	"sync"

	"github.com/luminous-dynamics/hdc/hypervector"
)

// Procedural derives each entry as hypervector.Random(seed, symbol) and
// caches it. Entries are written once and never change.
type Procedural struct {
	seed hypervector.Seed

	mu    sync.RWMutex
	table map[string]hypervector.Vector
}

// NewProcedural returns an empty procedural codebook for seed.
func NewProcedural(seed hypervector.Seed) *Procedural {
	return &Procedural{
		seed:  seed,
		table: make(map[string]hypervector.Vector),
	}
}

// Get never fails; the error is part of the Source contract.
func (p *Procedural) Get(symbol string) (hypervector.Vector, error) {
	return p.Vector(symbol), nil
}

// Vector returns the entry for symbol, generating it on first use.
func (p *Procedural) Vector(symbol string) hypervector.Vector {
	p.mu.RLock()
	v, ok := p.table[symbol]
	p.mu.RUnlock()
	if ok {
		return v
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.table[symbol]; ok {
		return v
	}
	v = hypervector.Random(p.seed, symbol)
	p.table[symbol] = v
	return v
}

// Len returns the number of cached entries.
func (p *Procedural) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.table)
}

// Seed returns the seed entries are derived from.
func (p *Procedural) Seed() hypervector.Seed {
	return p.seed
}
