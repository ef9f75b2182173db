package wallet

import (
	"context"
	"sync"

	"github.com/radieske/crash-game-platform/internal/shared/apperr"
)

// Memory é uma carteira em memória para ambiente local e testes
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
	applied  map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int64),
		applied:  make(map[string]struct{}),
	}
}

// Deposit adiciona saldo e retorna o novo valor
func (m *Memory) Deposit(_ context.Context, username string, cents int64, ref string) (int64, error) {
	if cents <= 0 {
		return 0, apperr.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seen(ref) {
		m.balances[username] += cents
	}
	return m.balances[username], nil
}

func (m *Memory) Debit(_ context.Context, username string, cents int64, ref string) error {
	if cents <= 0 {
		return apperr.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.applied[ref]; ok && ref != "" {
		return nil
	}
	if m.balances[username] < cents {
		return apperr.ErrInsufficientBalance
	}
	m.seen(ref)
	m.balances[username] -= cents
	return nil
}

func (m *Memory) Credit(_ context.Context, username string, cents int64, ref string) error {
	if cents < 0 {
		return apperr.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seen(ref) {
		m.balances[username] += cents
	}
	return nil
}

func (m *Memory) Balance(_ context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[username], nil
}

// seen marca a referência e informa se ela já tinha sido aplicada
func (m *Memory) seen(ref string) bool {
	if ref == "" {
		return false
	}
	if _, ok := m.applied[ref]; ok {
		return true
	}
	m.applied[ref] = struct{}{}
	return false
}
