// Package store provides leave.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	requests  map[leave.RequestID]*leave.LeaveRequest
	steps     map[leave.StepID]*leave.ApprovalStep
	balances  map[leave.BalanceKey]*leave.Balance
	mutations []leave.BalanceMutation
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[leave.RequestID]*leave.LeaveRequest),
		steps:    make(map[leave.StepID]*leave.ApprovalStep),
		balances: make(map[leave.BalanceKey]*leave.Balance),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRequestLocked(r)
}

func (m *Memory) saveRequestLocked(r *leave.LeaveRequest) error {
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Memory) UpdateRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; !ok {
		return leave.ErrNotFound
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, leave.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) RequestsByEmployee(_ context.Context, id leave.EmployeeID) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.EmployeeID == id {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) FindOverlapping(_ context.Context, id leave.EmployeeID, start, end leave.Date) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.EmployeeID == id && r.BlocksOverlap() && r.Overlaps(start, end) {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *Memory) ClaimForReminder(_ context.Context, cutoff, now time.Time) ([]*leave.LeaveRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var claimed []*leave.LeaveRequest
	for _, r := range m.requests {
		if !r.Status.IsPending() {
			continue
		}
		if r.RemindedAt != nil && !r.RemindedAt.Before(cutoff) {
			continue
		}
		if r.CreatedAt.After(cutoff) {
			continue
		}
		stamp := now
		r.RemindedAt = &stamp
		cp := *r
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (m *Memory) PendingRequests(_ context.Context) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.Status.IsPending() {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// =============================================================================
// STEPS
// =============================================================================

func (m *Memory) SaveSteps(_ context.Context, steps []*leave.ApprovalStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range steps {
		cp := *s
		m.steps[s.ID] = &cp
	}
	return nil
}

func (m *Memory) UpdateStep(_ context.Context, s *leave.ApprovalStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.steps[s.ID]; !ok {
		return leave.ErrNotFound
	}
	cp := *s
	m.steps[s.ID] = &cp
	return nil
}

func (m *Memory) GetStep(_ context.Context, id leave.StepID) (*leave.ApprovalStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.steps[id]
	if !ok {
		return nil, leave.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) StepsByRequest(_ context.Context, id leave.RequestID, attempt int) ([]*leave.ApprovalStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*leave.ApprovalStep
	for _, s := range m.steps {
		if s.RequestID == id && s.Attempt == attempt {
			cp := *s
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StepOrder < result[j].StepOrder })
	return result, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (m *Memory) GetBalance(_ context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[key]
	if !ok {
		return nil, leave.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) CreateBalance(_ context.Context, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[b.Key]; ok {
		return leave.ErrBalanceExists
	}
	b.Version = 1
	m.balances[b.Key] = &b
	return nil
}

// UpdateBalance is the compare-and-swap point: the write lands only when the
// stored version still matches what the caller read.
func (m *Memory) UpdateBalance(_ context.Context, b leave.Balance, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.balances[b.Key]
	if !ok {
		return leave.ErrNotFound
	}
	if current.Version != expectedVersion {
		return leave.ErrConcurrencyConflict
	}
	b.Version = expectedVersion + 1
	m.balances[b.Key] = &b
	return nil
}

func (m *Memory) AppendMutation(_ context.Context, mut leave.BalanceMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations = append(m.mutations, mut)
	return nil
}

func (m *Memory) BalancesByEmployee(_ context.Context, id leave.EmployeeID, year int) ([]*leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*leave.Balance
	for _, b := range m.balances {
		if b.Key.EmployeeID == id && b.Key.Year == year {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key.BalanceType < result[j].Key.BalanceType })
	return result, nil
}

func (m *Memory) Mutations(_ context.Context, key leave.BalanceKey) ([]leave.BalanceMutation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.BalanceMutation
	for _, mut := range m.mutations {
		if mut.Key == key {
			result = append(result, mut)
		}
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
	txmu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction. For the memory store this is
// simulated with a snapshot and a restore on error. Transactions are
// serialized; fn operates on the live store through a view.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tm.txmu.Lock()
	defer tm.txmu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests  map[leave.RequestID]*leave.LeaveRequest
	steps     map[leave.StepID]*leave.ApprovalStep
	balances  map[leave.BalanceKey]*leave.Balance
	mutations []leave.BalanceMutation
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	s := memorySnapshot{
		requests: make(map[leave.RequestID]*leave.LeaveRequest, len(tm.requests)),
		steps:    make(map[leave.StepID]*leave.ApprovalStep, len(tm.steps)),
		balances: make(map[leave.BalanceKey]*leave.Balance, len(tm.balances)),
	}
	for k, v := range tm.requests {
		cp := *v
		s.requests[k] = &cp
	}
	for k, v := range tm.steps {
		cp := *v
		s.steps[k] = &cp
	}
	for k, v := range tm.balances {
		cp := *v
		s.balances[k] = &cp
	}
	s.mutations = append([]leave.BalanceMutation{}, tm.mutations...)
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.requests = s.requests
	tm.steps = s.steps
	tm.balances = s.balances
	tm.mutations = s.mutations
}

var (
	_ leave.Store   = (*Memory)(nil)
	_ leave.TxStore = (*TxMemory)(nil)
)
