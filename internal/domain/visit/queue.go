package visit

import (
	"sync"

	"github.com/google/uuid"
)

// FamilyQueueEntry is one family member awaiting vitals in a session queue.
type FamilyQueueEntry struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	VisitID     string `json:"visit_id"`
	Done        bool   `json:"done"`
	Skipped     bool   `json:"skipped"`
}

// FamilyQueue is a session-scoped cursor over family members created in one
// bulk check-in. It is held in memory only; the visits themselves are
// persisted at creation time.
type FamilyQueue struct {
	SessionID string             `json:"session_id"`
	Entries   []FamilyQueueEntry `json:"entries"`
	Cursor    int                `json:"cursor"`
}

// Current returns the entry under the cursor, or nil when the queue is
// exhausted.
func (q *FamilyQueue) Current() *FamilyQueueEntry {
	if q.Cursor < 0 || q.Cursor >= len(q.Entries) {
		return nil
	}
	return &q.Entries[q.Cursor]
}

// Finished reports whether every entry has been handled or skipped.
func (q *FamilyQueue) Finished() bool {
	return q.Cursor >= len(q.Entries)
}

// FamilyQueueStore keeps the active family vitals queues, keyed by session.
// A server restart drops the cursors but never the underlying visits.
type FamilyQueueStore struct {
	mu     sync.RWMutex
	queues map[string]*FamilyQueue
}

func NewFamilyQueueStore() *FamilyQueueStore {
	return &FamilyQueueStore{queues: make(map[string]*FamilyQueue)}
}

func (s *FamilyQueueStore) Start(entries []FamilyQueueEntry) *FamilyQueue {
	q := &FamilyQueue{
		SessionID: uuid.NewString(),
		Entries:   entries,
	}
	s.mu.Lock()
	s.queues[q.SessionID] = q
	s.mu.Unlock()
	return q
}

func (s *FamilyQueueStore) Get(sessionID string) (*FamilyQueue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[sessionID]
	return q, ok
}

// Advance marks the current entry done and moves the cursor forward.
func (s *FamilyQueueStore) Advance(sessionID string) (*FamilyQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[sessionID]
	if !ok {
		return nil, false
	}
	if cur := q.Current(); cur != nil {
		cur.Done = true
		q.Cursor++
	}
	return q, true
}

// Skip leaves the current entry untouched in triage and moves on.
func (s *FamilyQueueStore) Skip(sessionID string) (*FamilyQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[sessionID]
	if !ok {
		return nil, false
	}
	if cur := q.Current(); cur != nil {
		cur.Skipped = true
		q.Cursor++
	}
	return q, true
}

func (s *FamilyQueueStore) End(sessionID string) {
	s.mu.Lock()
	delete(s.queues, sessionID)
	s.mu.Unlock()
}
