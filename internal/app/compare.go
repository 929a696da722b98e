package app

import (
	"context"
	"fmt"
	"time"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// CompareStatus describes how a remote event relates to the local mirror.
type CompareStatus string

const (
	CompareSynced   CompareStatus = "synced"
	ComparePending  CompareStatus = "pending"
	CompareOrphaned CompareStatus = "orphaned"
)

// CompareRow is one event seen remotely, locally, or both.
type CompareRow struct {
	RemoteEventID string
	Title         string
	RemoteStatus  string
	LocalID       int64
	LastSyncedAt  time.Time
	Status        CompareStatus
}

// CompareService reports drift between a tenant's upstream listing and its
// local documents without changing either.
type CompareService struct {
	registry *TenantRegistry
	docs     domain.DocumentStore
	sources  domain.SourceFactory
}

// NewCompareService creates a compare service.
func NewCompareService(registry *TenantRegistry, docs domain.DocumentStore, sources domain.SourceFactory) *CompareService {
	return &CompareService{registry: registry, docs: docs, sources: sources}
}

// CompareEvents lists remote events in upstream order followed by local
// orphans in local order.
func (s *CompareService) CompareEvents(ctx context.Context, tenantID string) ([]CompareRow, error) {
	t, err := s.registry.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	events, err := s.sources.ForKey(t.Slug, t.APIKey).FetchEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}
	locals, err := s.docs.FindAll(ctx, t.Scope())
	if err != nil {
		return nil, fmt.Errorf("listing local documents: %w", err)
	}

	byRemote := make(map[string]domain.Document, len(locals))
	for _, d := range locals {
		byRemote[d.RemoteEventID] = d
	}

	rows := make([]CompareRow, 0, len(events)+len(locals))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		seen[ev.ID] = struct{}{}
		row := CompareRow{
			RemoteEventID: ev.ID,
			Title:         ev.Name,
			RemoteStatus:  ev.Status,
			Status:        ComparePending,
		}
		if d, ok := byRemote[ev.ID]; ok {
			row.LocalID = d.LocalID
			row.LastSyncedAt = d.LastSyncedAt
			row.Status = CompareSynced
		}
		rows = append(rows, row)
	}

	for _, d := range locals {
		if _, ok := seen[d.RemoteEventID]; ok {
			continue
		}
		rows = append(rows, CompareRow{
			RemoteEventID: d.RemoteEventID,
			Title:         d.Title,
			LocalID:       d.LocalID,
			LastSyncedAt:  d.LastSyncedAt,
			Status:        CompareOrphaned,
		})
	}
	return rows, nil
}
