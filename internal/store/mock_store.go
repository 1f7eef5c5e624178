package store

import (
	"errors"
	"sort"
	"sync"

	"example.com/bufferproxy/internal/models"
)

// MockStore keeps proxy calls in memory for tests.
type MockStore struct {
	ShouldFail bool

	mu    sync.Mutex
	calls []models.ProxyCall
}

func NewMock() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Close() {}

func (m *MockStore) AddProxyCall(call models.ProxyCall) error {
	if m.ShouldFail {
		return errors.New("mock: add proxy call failed")
	}
	if call.ID == "" {
		return errors.New("mock: proxy call without id")
	}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
	return nil
}

func (m *MockStore) RecentProxyCalls(day string, limit int) ([]models.ProxyCall, error) {
	return m.list(func(c models.ProxyCall) bool { return c.Day() == day }, limit)
}

func (m *MockStore) RouteProxyCalls(route, day string, limit int) ([]models.ProxyCall, error) {
	return m.list(func(c models.ProxyCall) bool {
		return c.Day() == day && routeKey(c.Route) == routeKey(route)
	}, limit)
}

// Len returns the number of stored calls.
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MockStore) list(keep func(models.ProxyCall) bool, limit int) ([]models.ProxyCall, error) {
	if m.ShouldFail {
		return nil, errors.New("mock: list proxy calls failed")
	}
	m.mu.Lock()
	var res []models.ProxyCall
	for _, c := range m.calls {
		if keep(c) {
			res = append(res, c)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(res, func(i, j int) bool { return res[i].CalledAt.After(res[j].CalledAt) })
	if limit = clampLimit(limit); len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// MockStoreFail always returns errors for negative tests.
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) AddProxyCall(models.ProxyCall) error {
	return errors.New("mock store add proxy call failed")
}

func (m *MockStoreFail) RecentProxyCalls(string, int) ([]models.ProxyCall, error) {
	return nil, errors.New("mock store list proxy calls failed")
}

func (m *MockStoreFail) RouteProxyCalls(string, string, int) ([]models.ProxyCall, error) {
	return nil, errors.New("mock store list proxy calls failed")
}
