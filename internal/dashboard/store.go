package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/generallabsolutions/crm-backend/internal/leads"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
)

var (
	errMissingClient = errors.New("dashboard: api client is required")
	// ErrUnknownLead indicates a move targeted a lead absent from the cache.
	ErrUnknownLead = errors.New("dashboard: lead not in local state")
)

// Store holds the dashboard's local copy of server state. The Kanban board
// renders from this cache; MoveLead mutates it optimistically before the
// server confirms, and rolls back when the server refuses.
type Store struct {
	mu       sync.Mutex
	client   *APIClient
	onChange func()

	leads []leads.Lead
	tasks []tasks.TaskWithLead
	logs  []audit.Entry
}

// NewStore constructs a store. onChange fires after every visible state
// change, including the optimistic one, and may be nil.
func NewStore(client *APIClient, onChange func()) (*Store, error) {
	if client == nil {
		return nil, errMissingClient
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Store{client: client, onChange: onChange}, nil
}

// Refresh replaces every cache from the server.
func (s *Store) Refresh(ctx context.Context) error {
	fetchedLeads, err := s.client.ListLeads(ctx)
	if err != nil {
		return err
	}
	fetchedTasks, err := s.client.ListTasks(ctx)
	if err != nil {
		return err
	}
	fetchedLogs, err := s.client.ListLogs(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.leads = fetchedLeads
	s.tasks = fetchedTasks
	s.logs = fetchedLogs
	s.mu.Unlock()

	s.onChange()
	return nil
}

// Leads returns a copy of the cached leads.
func (s *Store) Leads() []leads.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]leads.Lead, len(s.leads))
	copy(copied, s.leads)
	return copied
}

// Tasks returns a copy of the cached tasks.
func (s *Store) Tasks() []tasks.TaskWithLead {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]tasks.TaskWithLead, len(s.tasks))
	copy(copied, s.tasks)
	return copied
}

// Logs returns a copy of the cached log entries.
func (s *Store) Logs() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]audit.Entry, len(s.logs))
	copy(copied, s.logs)
	return copied
}

// MoveLead drags a lead card to another pipeline column. The cache changes
// immediately so the card lands in the new column without waiting; the full
// record then goes to the server. A server failure restores the previous
// card state. On success the server's copy replaces the optimistic one and
// the log cache refreshes, so the transition entry the server wrote shows
// up without a second write from the client.
func (s *Store) MoveLead(ctx context.Context, id uint, status leads.Status) error {
	s.mu.Lock()
	index := s.leadIndex(id)
	if index < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: id %d", ErrUnknownLead, id)
	}
	previous := s.leads[index]
	candidate := previous
	candidate.Status = status
	s.leads[index] = candidate
	s.mu.Unlock()
	s.onChange()

	confirmed, err := s.client.UpdateLead(ctx, candidate)
	if err != nil {
		s.mu.Lock()
		if index := s.leadIndex(id); index >= 0 {
			s.leads[index] = previous
		}
		s.mu.Unlock()
		s.onChange()
		return err
	}

	s.mu.Lock()
	if index := s.leadIndex(id); index >= 0 {
		s.leads[index] = confirmed
	}
	s.mu.Unlock()
	s.onChange()

	if logs, logErr := s.client.ListLogs(ctx); logErr == nil {
		s.mu.Lock()
		s.logs = logs
		s.mu.Unlock()
		s.onChange()
	}
	return nil
}

// leadIndex is called with the mutex held.
func (s *Store) leadIndex(id uint) int {
	for index, lead := range s.leads {
		if lead.ID == id {
			return index
		}
	}
	return -1
}
