package test

import (
	"context"
	"database/sql"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/tablesync/pkg/batch/adapter/database"
)

// MockConnectionProvider is a testify mock of database.ConnectionProvider.
type MockConnectionProvider struct {
	mock.Mock
}

// Connect mocks database.ConnectionProvider.Connect.
func (m *MockConnectionProvider) Connect(ctx context.Context, name string, isolation sql.IsolationLevel) (database.DBConnection, error) {
	args := m.Called(ctx, name, isolation)
	conn, _ := args.Get(0).(database.DBConnection)
	return conn, args.Error(1)
}

// FlakyProvider fails the first Failures calls to Connect for database Name with Err and
// delegates every other call to Inner.
type FlakyProvider struct {
	Inner    database.ConnectionProvider
	Name     string
	Failures int
	Err      error

	mu    sync.Mutex
	calls map[string]int
}

// Connect implements database.ConnectionProvider.
func (p *FlakyProvider) Connect(ctx context.Context, name string, isolation sql.IsolationLevel) (database.DBConnection, error) {
	p.mu.Lock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[name]++
	n := p.calls[name]
	p.mu.Unlock()

	if name == p.Name && n <= p.Failures {
		return nil, p.Err
	}
	return p.Inner.Connect(ctx, name, isolation)
}

// Calls returns how many times Connect was called for name.
func (p *FlakyProvider) Calls(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}
