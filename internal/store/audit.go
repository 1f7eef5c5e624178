package store

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"example.com/bufferproxy/internal/models"
)

// UnmatchedRoute is the route partition for requests that matched no route.
const UnmatchedRoute = "unmatched"

const maxListLimit = 1000

func routeKey(route string) string {
	if route == "" {
		return UnmatchedRoute
	}
	return route
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// AddProxyCall writes the call to the per-day and per-route tables in one
// logged batch.
func (s *Store) AddProxyCall(call models.ProxyCall) error {
	id, err := gocql.ParseUUID(call.ID)
	if err != nil {
		return fmt.Errorf("proxy call id: %w", err)
	}
	ms := int(call.Duration / time.Millisecond)

	batch := s.Session.NewBatch(gocql.LoggedBatch)
	batch.Query(`
		INSERT INTO proxy_calls_by_day
		(day, called_at, call_id, request_id, method, path, route, status, duration_ms, credential_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.Day(), call.CalledAt, id, call.RequestID, call.Method, call.Path, call.Route,
		call.Status, ms, call.CredentialSource,
	)
	batch.Query(`
		INSERT INTO proxy_calls_by_route
		(route, day, called_at, call_id, request_id, method, path, status, duration_ms, credential_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		routeKey(call.Route), call.Day(), call.CalledAt, id, call.RequestID, call.Method, call.Path,
		call.Status, ms, call.CredentialSource,
	)

	if err := s.Session.ExecuteBatch(batch); err != nil {
		logg.Error("store", "Failed to add proxy call", err)
		return err
	}
	logg.Debug("store", "Proxy call stored ["+call.Route+"]")
	return nil
}

// RecentProxyCalls lists the calls of one UTC day, newest first.
func (s *Store) RecentProxyCalls(day string, limit int) ([]models.ProxyCall, error) {
	iter := s.Session.Query(`
		SELECT called_at, call_id, request_id, method, path, route, status, duration_ms, credential_source
		FROM proxy_calls_by_day WHERE day = ? LIMIT ?`,
		day, clampLimit(limit),
	).Iter()

	var (
		res  []models.ProxyCall
		call models.ProxyCall
		id   gocql.UUID
		ms   int
	)
	for iter.Scan(&call.CalledAt, &id, &call.RequestID, &call.Method, &call.Path,
		&call.Route, &call.Status, &ms, &call.CredentialSource) {
		call.ID = id.String()
		call.Duration = time.Duration(ms) * time.Millisecond
		res = append(res, call)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list proxy calls", err)
		return nil, err
	}
	return res, nil
}

// RouteProxyCalls lists the calls of one route on one UTC day, newest first.
func (s *Store) RouteProxyCalls(route, day string, limit int) ([]models.ProxyCall, error) {
	iter := s.Session.Query(`
		SELECT called_at, call_id, request_id, method, path, status, duration_ms, credential_source
		FROM proxy_calls_by_route WHERE route = ? AND day = ? LIMIT ?`,
		routeKey(route), day, clampLimit(limit),
	).Iter()

	var (
		res  []models.ProxyCall
		call models.ProxyCall
		id   gocql.UUID
		ms   int
	)
	for iter.Scan(&call.CalledAt, &id, &call.RequestID, &call.Method, &call.Path,
		&call.Status, &ms, &call.CredentialSource) {
		call.ID = id.String()
		call.Route = route
		call.Duration = time.Duration(ms) * time.Millisecond
		res = append(res, call)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list proxy calls by route", err)
		return nil, err
	}
	return res, nil
}
