package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/chorewheel/internal/ledger"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

// fakeStore is an in-memory Store that can be told to fail or to block.
type fakeStore struct {
	mu          sync.Mutex
	nextID      int64
	members     map[int64]model.Member
	templates   map[int64]model.ChoreTemplate
	rosters     map[int64][]model.RosterEntry
	completions map[ledger.Key]model.CompletionRecord

	toggleErr   error
	loadErr     error
	toggleGate  chan struct{}
	toggleCalls int
	loadCalls   int
	loadGate    func(weekStart time.Time) <-chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:      100,
		members:     make(map[int64]model.Member),
		templates:   make(map[int64]model.ChoreTemplate),
		rosters:     make(map[int64][]model.RosterEntry),
		completions: make(map[ledger.Key]model.CompletionRecord),
	}
}

func (f *fakeStore) addMember(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[id] = model.Member{ID: id, Name: name, Color: "#3B82F6", IsActive: true}
}

func (f *fakeStore) addChore(id int64, name string, weeksBetween int, memberIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[id] = model.ChoreTemplate{ID: id, Name: name, WeeksBetween: weeksBetween, IsActive: true}
	f.rosters[id] = rosterFor(id, memberIDs)
}

func (f *fakeStore) setToggleErr(err error) {
	f.mu.Lock()
	f.toggleErr = err
	f.mu.Unlock()
}

func (f *fakeStore) calls() (toggles, loads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toggleCalls, f.loadCalls
}

func rosterFor(choreID int64, memberIDs []int64) []model.RosterEntry {
	roster := make([]model.RosterEntry, len(memberIDs))
	for i, id := range memberIDs {
		roster[i] = model.RosterEntry{ChoreID: choreID, MemberID: id, RotationIndex: i + 1}
	}
	return roster
}

func (f *fakeStore) ListMembers(ctx context.Context) ([]model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Member
	for _, m := range f.members {
		if m.IsActive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) CreateMember(ctx context.Context, name, color string) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := model.Member{ID: f.nextID, Name: name, Color: color, IsActive: true}
	f.members[m.ID] = m
	return &m, nil
}

func (f *fakeStore) UpdateMember(ctx context.Context, id int64, upd model.MemberUpdate) (*model.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, nil
	}
	if upd.Name != nil {
		m.Name = *upd.Name
	}
	if upd.Color != nil {
		m.Color = *upd.Color
	}
	if upd.IsActive != nil {
		m.IsActive = *upd.IsActive
	}
	f.members[id] = m
	return &m, nil
}

func (f *fakeStore) ListChoreTemplates(ctx context.Context) ([]model.ChoreTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ChoreTemplate
	for _, t := range f.templates {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) CreateTemplate(ctx context.Context, name string, weeksBetween int) (*model.ChoreTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := model.ChoreTemplate{ID: f.nextID, Name: name, WeeksBetween: weeksBetween, IsActive: true}
	f.templates[t.ID] = t
	return &t, nil
}

func (f *fakeStore) DeactivateTemplate(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.templates[id]
	t.IsActive = false
	f.templates[id] = t
	return nil
}

func (f *fakeStore) ListRoster(ctx context.Context, choreID int64) ([]model.RosterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.RosterEntry(nil), f.rosters[choreID]...), nil
}

func (f *fakeStore) ReplaceRoster(ctx context.Context, choreID int64, memberIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosters[choreID] = rosterFor(choreID, memberIDs)
	return nil
}

func (f *fakeStore) GetCompletions(ctx context.Context, weekStart time.Time) ([]model.CompletionRecord, error) {
	f.mu.Lock()
	f.loadCalls++
	err := f.loadErr
	gate := f.loadGate
	var out []model.CompletionRecord
	key := week.Key(weekStart)
	for k, rec := range f.completions {
		if k.Week == key {
			out = append(out, rec)
		}
	}
	f.mu.Unlock()

	if gate != nil {
		if ch := gate(weekStart); ch != nil {
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeStore) UpsertToggle(ctx context.Context, choreID int64, weekStart time.Time, assignedMemberID int64) (*model.CompletionRecord, error) {
	f.mu.Lock()
	f.toggleCalls++
	gate := f.toggleGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return nil, f.toggleErr
	}
	k := ledger.KeyFor(choreID, weekStart)
	prev, ok := f.completions[k]
	rec := ledger.Next(ledger.Entry{Record: prev, Present: ok}, choreID, weekStart, assignedMemberID, time.Now())
	if !ok {
		f.nextID++
		rec.ID = f.nextID
	}
	f.completions[k] = rec
	return &rec, nil
}

// fakeSource is an EventSource fed by the test.
type fakeSource struct {
	mu     sync.Mutex
	ch     chan Event
	err    error
	opened int
}

func (s *fakeSource) Subscribe(ctx context.Context) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.opened++
	s.ch = make(chan Event, 8)
	out := make(chan Event)
	in := s.ch
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *fakeSource) send(ev Event) {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	ch <- ev
}

func (s *fakeSource) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
}

func (s *fakeSource) subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}
