package testing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
)

// ErrMockFailure is returned by mocks configured to fail.
var ErrMockFailure = errors.New("mock failure")

// MemoryCache is an in-memory estimate cache with optional injected failures.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	puts    int
	FailGet bool
	FailPut bool
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (c *MemoryCache) Get(key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.FailGet {
		return nil, false, ErrMockFailure
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

// Put stores value under key.
func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.FailPut {
		return ErrMockFailure
	}
	c.entries[key] = append([]byte(nil), value...)
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Calls returns the number of Get and Put calls made so far.
func (c *MemoryCache) Calls() (gets, puts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.puts
}

// FakeEstimator returns closed-form factories instead of simulating them.
// Error rates scale as pphys^3, so power-law fits recover an exponent of 3.
type FakeEstimator struct {
	Prec uint
	// Fail maps a dx value to the error returned for every point with it.
	Fail map[int]error
	// Block, when set, holds every call until it is closed or ctx ends.
	Block chan struct{}

	mu    sync.Mutex
	calls int
}

// FakeErrorRate is the error rate FakeEstimator reports for p.
func FakeErrorRate(p distillation.Params) float64 {
	return 35 * math.Pow(p.PPhys, 3) / float64(p.DX+p.DX2)
}

// FakeQubits is the qubit count FakeEstimator reports for p.
func FakeQubits(p distillation.Params) int {
	return 2*(p.DX+p.DM)*(p.DX+4*p.DZ) + 2*p.DX2*p.DX2
}

// Estimate implements the estimator interfaces of the search and handler packages.
func (e *FakeEstimator) Estimate(ctx context.Context, proto distillation.Protocol, p distillation.Params) (*distillation.Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.Block != nil {
		select {
		case <-e.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.Validate(proto); err != nil {
		return nil, err
	}
	if err, ok := e.Fail[p.DX]; ok {
		return nil, err
	}
	return &distillation.Result{
		Protocol:  proto,
		Params:    p,
		Precision: e.Precision(),
		Factory: domain.MagicStateFactory{
			Name:      fmt.Sprintf("fake %s %g (%d,%d,%d)", proto, p.PPhys, p.DX, p.DZ, p.DM),
			ErrorRate: FakeErrorRate(p),
			Qubits:    FakeQubits(p),
			Cycles:    float64(10 * p.DM),
			TGates:    1,
		},
	}, nil
}

// Precision returns the configured precision, 128 by default.
func (e *FakeEstimator) Precision() uint {
	if e.Prec == 0 {
		return 128
	}
	return e.Prec
}

// Calls returns the number of Estimate calls.
func (e *FakeEstimator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// ErrFakeUnstable is a ready-made numerically unstable failure.
var ErrFakeUnstable = fmt.Errorf("acceptance probability vanishes: %w", domain.ErrUnstableResult)
