package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var ErrStaleResult = errors.New("result does not match the current selection")

// Ticket identifies one load cycle for a selected dataset.
type Ticket struct {
	ID         uuid.UUID
	Identifier string
}

// Snapshot is the data shown for the selected dataset.
type Snapshot struct {
	Dataset   Dataset   `json:"dataset"`
	Aggregate Aggregate `json:"summary"`
	Report    Report    `json:"report"`
}

// Session owns everything the presentation layer shows: the catalog, the
// selected dataset, its snapshot and the table view state. Each selection
// starts a fresh cycle; only the latest ticket may install results.
type Session struct {
	catalog Catalog

	mu       sync.Mutex
	current  Ticket
	loading  bool
	snapshot *Snapshot
	lastErr  error
	view     ViewState
}

func NewSession(catalog Catalog) (*Session, error) {
	if _, err := catalog.Default(); err != nil {
		return nil, err
	}
	return &Session{catalog: catalog}, nil
}

// Begin selects identifier and issues the ticket its results must carry.
func (s *Session) Begin(identifier string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Ticket{ID: uuid.New(), Identifier: identifier}
	s.loading = true
	s.lastErr = nil
	s.view = Reduce(s.view, SelectMonth{Identifier: identifier})
	return s.current
}

// Apply builds the snapshot for records if ticket is still current.
func (s *Session) Apply(ticket Ticket, records []Record) (Snapshot, error) {
	dataset, err := s.catalog.Lookup(ticket.Identifier)
	if err != nil {
		dataset = parseDataset(ticket.Identifier)
	}
	snapshot := Snapshot{
		Dataset:   dataset,
		Aggregate: aggregate(records),
		Report:    buildReport(records),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID != s.current.ID {
		return Snapshot{}, ErrStaleResult
	}
	s.loading = false
	s.snapshot = &snapshot
	return snapshot, nil
}

// Fail records a failed cycle. The previous snapshot is cleared so a stale
// month is never shown under the new selection.
func (s *Session) Fail(ticket Ticket, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID != s.current.ID {
		return ErrStaleResult
	}
	s.loading = false
	s.snapshot = nil
	s.lastErr = err
	return nil
}

// Load runs one full cycle: select, fetch, then apply or fail.
func (s *Session) Load(ctx context.Context, source Source, identifier string) (Snapshot, error) {
	ticket := s.Begin(identifier)
	records, err := source.Fetch(ctx, identifier)
	if err != nil {
		if failErr := s.Fail(ticket, err); failErr != nil {
			return Snapshot{}, failErr
		}
		return Snapshot{}, fmt.Errorf("load %s: %w", identifier, err)
	}
	return s.Apply(ticket, records)
}

// LoadDefault loads the most recent dataset in the catalog.
func (s *Session) LoadDefault(ctx context.Context, source Source) (Snapshot, error) {
	dataset, err := s.catalog.Default()
	if err != nil {
		return Snapshot{}, err
	}
	return s.Load(ctx, source, dataset.Identifier)
}

// Current returns the installed snapshot, if any.
func (s *Session) Current() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return Snapshot{}, false
	}
	return *s.snapshot, true
}

func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Identifier
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Dispatch applies a view event and returns the new view state.
func (s *Session) Dispatch(event ViewEvent) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = Reduce(s.view, event)
	return s.view
}

func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Rows materializes the table rows of the current snapshot.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	return Rows(s.snapshot.Report, s.view)
}
