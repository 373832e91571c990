// Package tracker is the data-access layer between the chore store and the
// presentation layer. A Tracker owns the loaded members, templates, rosters and
// completions for one display window and keeps them consistent with the store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/ledger"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

// rosterFetchLimit bounds concurrent roster requests during a full load.
const rosterFetchLimit = 8

type Tracker struct {
	store  Store
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time

	mu         sync.RWMutex
	members    []model.Member
	templates  []model.ChoreTemplate
	rosters    map[int64][]model.RosterEntry
	reference  time.Time
	window     []time.Time
	generation uint64
	lastSync   time.Time
	notice     *Notice
	writeSeq   uint64
	touched    map[ledger.Key]uint64

	ledger *ledger.Ledger

	inflightMu sync.Mutex
	inflight   map[ledger.Key]chan struct{}

	listenersMu sync.Mutex
	listeners   []func()
}

type Option func(*Tracker)

// WithLocation sets the reference timezone used to decide which week is today.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(store Store, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		logger:   logger.With("component", "tracker"),
		loc:      time.UTC,
		now:      time.Now,
		rosters:  make(map[int64][]model.RosterEntry),
		touched:  make(map[ledger.Key]uint64),
		ledger:   ledger.New(),
		inflight: make(map[ledger.Key]chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.reference = t.Today()
	t.window = week.DisplayWindow(t.reference)
	return t
}

// Today returns the start of the current week in the reference timezone.
func (t *Tracker) Today() time.Time {
	return week.Current(t.now(), t.loc)
}

// --- Loading ---

// LoadAll fetches members, templates and every roster, then loads the
// completions of the current display window.
func (t *Tracker) LoadAll(ctx context.Context) error {
	var members []model.Member
	var templates []model.ChoreTemplate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = t.store.ListMembers(gctx)
		if err != nil {
			return storeError("list members", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		templates, err = t.store.ListChoreTemplates(gctx)
		if err != nil {
			return storeError("list chore templates", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return t.fail(err)
	}

	rosters, err := t.fetchRosters(ctx, templates)
	if err != nil {
		return t.fail(err)
	}

	t.mu.Lock()
	t.members = members
	t.templates = templates
	t.rosters = rosters
	window := t.window
	t.mu.Unlock()

	t.logger.Debug("loaded chores", "members", len(members), "templates", len(templates))
	t.changed()
	return t.LoadWindow(ctx, window)
}

func (t *Tracker) fetchRosters(ctx context.Context, templates []model.ChoreTemplate) (map[int64][]model.RosterEntry, error) {
	results := make([][]model.RosterEntry, len(templates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rosterFetchLimit)
	for i, tmpl := range templates {
		g.Go(func() error {
			roster, err := t.store.ListRoster(gctx, tmpl.ID)
			if err != nil {
				return storeError(fmt.Sprintf("list roster for chore %d", tmpl.ID), err)
			}
			results[i] = chore.SortRoster(roster)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rosters := make(map[int64][]model.RosterEntry, len(templates))
	for i, tmpl := range templates {
		rosters[tmpl.ID] = results[i]
	}
	return rosters, nil
}

// LoadWindow makes weeks the display window and fetches their completions.
// If another window is requested before the fetch returns, the result is
// dropped. Keys with a toggle in flight, or toggled after the fetch began,
// keep their local value.
func (t *Tracker) LoadWindow(ctx context.Context, weeks []time.Time) error {
	window := make([]time.Time, len(weeks))
	for i, w := range weeks {
		window[i] = week.Start(w)
	}
	return t.loadWindow(ctx, window)
}

// loadWindow fetches window, or the current window when window is nil. The
// current window is read in the same critical section that claims the
// generation, so a refresh can never bring back a window that was replaced.
func (t *Tracker) loadWindow(ctx context.Context, window []time.Time) error {
	t.mu.Lock()
	if window == nil {
		window = append([]time.Time(nil), t.window...)
	}
	t.generation++
	gen := t.generation
	startSeq := t.writeSeq
	t.window = window
	t.mu.Unlock()

	results := make([][]model.CompletionRecord, len(window))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range window {
		g.Go(func() error {
			recs, err := t.store.GetCompletions(gctx, w)
			if err != nil {
				return storeError("get completions for "+week.Key(w), err)
			}
			results[i] = recs
			return nil
		})
	}
	err := g.Wait()

	if t.stale(gen) {
		t.logger.Debug("dropped stale window", "generation", gen)
		return nil
	}
	if err != nil {
		return t.fail(err)
	}

	var records []model.CompletionRecord
	for _, recs := range results {
		records = append(records, recs...)
	}

	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return nil
	}
	keep := t.inflightKeys()
	for k, seq := range t.touched {
		if seq > startSeq {
			keep[k] = true
		} else {
			delete(t.touched, k)
		}
	}
	t.ledger.ReplaceWeeks(window, records, keep)
	t.lastSync = t.now()
	t.mu.Unlock()

	t.recovered()
	t.changed()
	return nil
}

func (t *Tracker) stale(gen uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return gen != t.generation
}

// SetReferenceWeek moves the display window to the weeks around ref and loads it.
func (t *Tracker) SetReferenceWeek(ctx context.Context, ref time.Time) error {
	ref = week.Start(ref)
	t.mu.Lock()
	t.reference = ref
	t.mu.Unlock()
	return t.LoadWindow(ctx, week.DisplayWindow(ref))
}

// RefreshCompletions reloads the current window.
func (t *Tracker) RefreshCompletions(ctx context.Context) error {
	return t.loadWindow(ctx, nil)
}

func (t *Tracker) RefreshMembers(ctx context.Context) error {
	members, err := t.store.ListMembers(ctx)
	if err != nil {
		return t.fail(storeError("list members", err))
	}
	t.mu.Lock()
	t.members = members
	t.mu.Unlock()
	t.changed()
	return nil
}

// RefreshChores reloads templates and all rosters.
func (t *Tracker) RefreshChores(ctx context.Context) error {
	templates, err := t.store.ListChoreTemplates(ctx)
	if err != nil {
		return t.fail(storeError("list chore templates", err))
	}
	rosters, err := t.fetchRosters(ctx, templates)
	if err != nil {
		return t.fail(err)
	}
	t.mu.Lock()
	t.templates = templates
	t.rosters = rosters
	t.mu.Unlock()
	t.changed()
	return nil
}

func (t *Tracker) RefreshRoster(ctx context.Context, choreID int64) error {
	roster, err := t.store.ListRoster(ctx, choreID)
	if err != nil {
		return t.fail(storeError("list roster", err))
	}
	t.mu.Lock()
	t.rosters[choreID] = chore.SortRoster(roster)
	t.mu.Unlock()
	t.changed()
	return nil
}

// --- Queries ---

func (t *Tracker) Window() []time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]time.Time(nil), t.window...)
}

func (t *Tracker) ReferenceWeek() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reference
}

// LastSync is the time the last window load was applied.
func (t *Tracker) LastSync() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSync
}

func (t *Tracker) Members() []model.Member {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]model.Member(nil), t.members...)
}

func (t *Tracker) Member(id int64) *model.Member {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.members {
		if t.members[i].ID == id {
			m := t.members[i]
			return &m
		}
	}
	return nil
}

func (t *Tracker) Templates() []model.ChoreTemplate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]model.ChoreTemplate(nil), t.templates...)
}

func (t *Tracker) Roster(choreID int64) []model.RosterEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]model.RosterEntry(nil), t.rosters[choreID]...)
}

// AssignedMember resolves who does the chore in weekStart, or nil when the
// chore is unknown, not due or has nobody to assign.
func (t *Tracker) AssignedMember(choreID int64, weekStart time.Time) *model.Member {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tmpl, ok := t.template(choreID)
	if !ok {
		return nil
	}
	return chore.AssignedMember(tmpl, t.rosters[choreID], weekStart, t.members)
}

func (t *Tracker) template(id int64) (model.ChoreTemplate, bool) {
	for _, tmpl := range t.templates {
		if tmpl.ID == id {
			return tmpl, true
		}
	}
	return model.ChoreTemplate{}, false
}

// CompletionStatus reports whether the chore is completed for the week.
func (t *Tracker) CompletionStatus(choreID int64, weekStart time.Time) bool {
	return t.ledger.Status(choreID, weekStart)
}

// Completion returns the loaded record for (choreID, weekStart), if any.
func (t *Tracker) Completion(choreID int64, weekStart time.Time) (model.CompletionRecord, bool) {
	return t.ledger.Get(ledger.KeyFor(choreID, weekStart))
}

// Row is one chore across the display window.
type Row struct {
	Chore     model.ChoreTemplate
	Frequency string
	Cells     []chore.Cell
}

// Grid builds the board for the current window.
func (t *Tracker) Grid() []Row {
	today := t.Today()

	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]Row, 0, len(t.templates))
	for _, tmpl := range t.templates {
		row := Row{
			Chore:     tmpl,
			Frequency: chore.FormatFrequency(tmpl.WeeksBetween),
			Cells:     make([]chore.Cell, 0, len(t.window)),
		}
		for _, w := range t.window {
			assigned := chore.AssignedMember(tmpl, t.rosters[tmpl.ID], w, t.members)
			rec, ok := t.ledger.Get(ledger.KeyFor(tmpl.ID, w))
			completed := ok && rec.Completed
			row.Cells = append(row.Cells, chore.Cell{
				Week:      w,
				Assigned:  assigned,
				Completed: completed,
				Pending:   ok && rec.Pending,
				Status:    chore.ComputeStatus(assigned, completed, w, today),
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// Stats summarizes memberID's chores over the loaded window. Records the
// ledger still holds for other weeks are not counted.
func (t *Tracker) Stats(memberID int64) chore.Stats {
	all := t.ledger.Records()
	today := t.Today()

	t.mu.RLock()
	defer t.mu.RUnlock()
	loaded := make(map[string]bool, len(t.window))
	for _, w := range t.window {
		loaded[week.Key(w)] = true
	}
	records := all[:0]
	for _, rec := range all {
		if loaded[rec.WeekStart] {
			records = append(records, rec)
		}
	}
	return chore.ComputeStats(memberID, t.templates, t.rosters, records, today)
}

// --- Writes ---

// AddChore creates a template and, when memberIDs is not empty, its roster.
func (t *Tracker) AddChore(ctx context.Context, name string, weeksBetween int, memberIDs []int64) (*model.ChoreTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("chore name is required: %w", ErrInvalid)
	}
	if weeksBetween < 1 {
		return nil, fmt.Errorf("weeks between must be at least 1: %w", ErrInvalid)
	}

	tmpl, err := t.store.CreateTemplate(ctx, name, weeksBetween)
	if err != nil {
		return nil, t.fail(storeError("create chore template", err))
	}
	if len(memberIDs) > 0 {
		if err := t.store.ReplaceRoster(ctx, tmpl.ID, memberIDs); err != nil {
			return tmpl, t.fail(storeError("assign chore", err))
		}
	}
	t.logger.Info("chore added", "chore_id", tmpl.ID, "name", tmpl.Name, "weeks_between", weeksBetween)
	return tmpl, t.RefreshChores(ctx)
}

// DeleteChore deactivates a template. Its completion history is kept.
func (t *Tracker) DeleteChore(ctx context.Context, choreID int64) error {
	if err := t.store.DeactivateTemplate(ctx, choreID); err != nil {
		return t.fail(storeError("deactivate chore template", err))
	}
	t.logger.Info("chore removed", "chore_id", choreID)
	return t.RefreshChores(ctx)
}

// SetAssignees replaces the chore's rotation with memberIDs in order.
func (t *Tracker) SetAssignees(ctx context.Context, choreID int64, memberIDs []int64) error {
	seen := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		if seen[id] {
			return fmt.Errorf("member %d listed twice: %w", id, ErrInvalid)
		}
		seen[id] = true
	}
	if err := t.store.ReplaceRoster(ctx, choreID, memberIDs); err != nil {
		return t.fail(storeError("replace roster", err))
	}
	return t.RefreshRoster(ctx, choreID)
}

func (t *Tracker) AddMember(ctx context.Context, name, color string) (*model.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("member name is required: %w", ErrInvalid)
	}
	m, err := t.store.CreateMember(ctx, name, color)
	if err != nil {
		return nil, t.fail(storeError("create member", err))
	}
	return m, t.RefreshMembers(ctx)
}

func (t *Tracker) UpdateMember(ctx context.Context, id int64, upd model.MemberUpdate) (*model.Member, error) {
	m, err := t.store.UpdateMember(ctx, id, upd)
	if err != nil {
		return nil, t.fail(storeError("update member", err))
	}
	return m, t.RefreshMembers(ctx)
}

// --- Notices and change callbacks ---

// Notice returns the current error notice, or nil.
func (t *Tracker) Notice() *Notice {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.notice == nil {
		return nil
	}
	n := *t.notice
	return &n
}

func (t *Tracker) ClearNotice() {
	t.mu.Lock()
	t.notice = nil
	t.mu.Unlock()
	t.changed()
}

// OnChange registers fn to run after every change to the tracker's state.
// fn runs on the goroutine that made the change and must not block.
func (t *Tracker) OnChange(fn func()) {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) changed() {
	t.listenersMu.Lock()
	listeners := append([]func(){}, t.listeners...)
	t.listenersMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// fail records err as the current notice and returns it. Context
// cancellation is returned as is.
func (t *Tracker) fail(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := Classify(err)
	t.mu.Lock()
	t.notice = &Notice{Kind: kind, Message: err.Error(), At: t.now()}
	t.mu.Unlock()
	t.logger.Warn("store call failed", "kind", kind.String(), "error", err)
	t.changed()
	return err
}

// recovered clears an offline notice once the store answers again.
func (t *Tracker) recovered() {
	t.mu.Lock()
	if t.notice != nil && t.notice.Kind == NoticeOffline {
		t.notice = nil
	}
	t.mu.Unlock()
}
