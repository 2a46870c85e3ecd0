package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/wastebank/internal/domain"
)

// CommitStage identifies a step of Memory.Commit for fault injection.
type CommitStage int

const (
	StageNone CommitStage = iota
	StageEntry
	StageBalance
)

// ErrInjected is the failure produced by fault injection.
var ErrInjected = errors.New("injected store failure")

// Memory is an in-process Store with the same atomicity guarantees as Postgres.
// It backs tests and the memory driver for local runs.
type Memory struct {
	mu         sync.Mutex
	members    map[string]domain.Member
	wasteTypes map[string]domain.WasteType
	entries    []domain.LedgerEntry
	operators  map[string]domain.Operator

	failAt  CommitStage
	readErr error
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		members:    make(map[string]domain.Member),
		wasteTypes: make(map[string]domain.WasteType),
		operators:  make(map[string]domain.Operator),
		now:        time.Now,
	}
}

// FailCommitAt makes every following Commit fail at stage. StageNone disables it.
func (m *Memory) FailCommitAt(stage CommitStage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt = stage
}

// FailReads makes every following read return err. A nil err disables it.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetBalance overwrites a balance directly, simulating another writer.
func (m *Memory) SetBalance(id string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mem, ok := m.members[id]; ok {
		mem.Balance = balance
		m.members[id] = mem
	}
}

func (m *Memory) ListMembers(ctx context.Context) ([]domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]domain.Member, 0, len(m.members))
	for _, mem := range m.members {
		out = append(out, mem)
	}
	slices.SortFunc(out, func(a, b domain.Member) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
	return out, nil
}

func (m *Memory) GetMember(ctx context.Context, id string) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	mem, ok := m.members[id]
	if !ok {
		return nil, nil
	}
	return &mem, nil
}

func (m *Memory) FindMemberByCode(ctx context.Context, code string) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	for _, mem := range m.members {
		if mem.Code == code {
			return &mem, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateMember(ctx context.Context, f MemberFields) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.Code == f.Code {
			return nil, ErrDuplicate
		}
	}
	now := m.now()
	mem := domain.Member{
		ID:        uuid.NewString(),
		Code:      f.Code,
		Name:      f.Name,
		Address:   f.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.members[mem.ID] = mem
	return &mem, nil
}

func (m *Memory) UpdateMember(ctx context.Context, id string, f MemberFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return ErrNotFound
	}
	for other, o := range m.members {
		if other != id && o.Code == f.Code {
			return ErrDuplicate
		}
	}
	if mem.Code != f.Code {
		for i := range m.entries {
			if m.entries[i].MemberCode == mem.Code {
				m.entries[i].MemberCode = f.Code
			}
		}
	}
	mem.Code, mem.Name, mem.Address = f.Code, f.Name, f.Address
	mem.UpdatedAt = m.now()
	m.members[id] = mem
	return nil
}

func (m *Memory) DeleteMember(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[id]
	if !ok {
		return ErrNotFound
	}
	m.entries = slices.DeleteFunc(m.entries, func(e domain.LedgerEntry) bool {
		return e.MemberCode == mem.Code
	})
	delete(m.members, id)
	return nil
}

func (m *Memory) ListWasteTypes(ctx context.Context) ([]domain.WasteType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []domain.WasteType
	for _, wt := range m.wasteTypes {
		if wt.Active {
			out = append(out, wt)
		}
	}
	slices.SortFunc(out, func(a, b domain.WasteType) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (m *Memory) GetWasteType(ctx context.Context, id string) (*domain.WasteType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	wt, ok := m.wasteTypes[id]
	if !ok {
		return nil, nil
	}
	return &wt, nil
}

func (m *Memory) CreateWasteType(ctx context.Context, f WasteTypeFields) (*domain.WasteType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	wt := domain.WasteType{
		ID:         uuid.NewString(),
		Name:       f.Name,
		PricePerKg: f.PricePerKg,
		PhotoURL:   f.PhotoURL,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.wasteTypes[wt.ID] = wt
	return &wt, nil
}

func (m *Memory) UpdateWasteType(ctx context.Context, id string, f WasteTypeFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wt, ok := m.wasteTypes[id]
	if !ok {
		return ErrNotFound
	}
	wt.Name, wt.PricePerKg, wt.PhotoURL = f.Name, f.PricePerKg, f.PhotoURL
	wt.UpdatedAt = m.now()
	m.wasteTypes[id] = wt
	return nil
}

func (m *Memory) DeactivateWasteType(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wt, ok := m.wasteTypes[id]
	if !ok {
		return ErrNotFound
	}
	wt.Active = false
	wt.UpdatedAt = m.now()
	m.wasteTypes[id] = wt
	return nil
}

func (m *Memory) ListEntries(ctx context.Context, f EntryFilter) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if f.match(e) {
			e.Items = slices.Clone(e.Items)
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.LedgerEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

// Commit stages the entry and the balance change and publishes both only when
// every stage succeeded.
func (m *Memory) Commit(ctx context.Context, b Batch) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.members[b.Balance.MemberID]
	if !ok {
		return "", ErrNotFound
	}
	if mem.Balance != b.Balance.Expected {
		return "", ErrConflict
	}

	entry := b.Entry
	entry.ID = uuid.NewString()
	entry.CreatedAt = m.now()
	entry.Items = slices.Clone(entry.Items)
	staged := append(slices.Clone(m.entries), entry)
	if m.failAt == StageEntry {
		return "", fmt.Errorf("insert entry: %w", ErrInjected)
	}

	mem.Balance = b.Balance.New
	mem.UpdatedAt = m.now()
	if m.failAt == StageBalance {
		return "", fmt.Errorf("update balance: %w", ErrInjected)
	}

	m.entries = staged
	m.members[mem.ID] = mem
	return entry.ID, nil
}

func (m *Memory) FindOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	op, ok := m.operators[email]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

func (m *Memory) CreateOperator(ctx context.Context, email, passwordHash string) (*domain.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.operators[email]; ok {
		return nil, ErrDuplicate
	}
	now := m.now()
	op := domain.Operator{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.operators[email] = op
	return &op, nil
}
