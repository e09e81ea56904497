package attendance

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"checkin/internal/docstore"
	"checkin/internal/metrics"
	"checkin/internal/queue"
	"checkin/internal/roster"
)

// Options configures a Service. Zero values select in-process defaults.
type Options struct {
	// Queue receives bookkeeping writes; nil writes them inline.
	Queue      queue.Queue
	Claimer    Claimer
	Parser     *roster.Parser
	Location   *time.Location
	TimeLayout string
	Now        func() time.Time
}

// Service is the check-in session: the current roster and the ledger of
// registered guests. Register is atomic per guest id.
type Service struct {
	repo    *Repository
	queue   queue.Queue
	claimer Claimer
	parser  *roster.Parser
	loc     *time.Location
	layout  string
	now     func() time.Time

	mu      sync.Mutex
	roster  *roster.Roster
	entries []RegisteredGuest
	index   map[string]int
	locks   map[string]*sync.Mutex
}

// NewService creates a session backed by a repository.
func NewService(repo *Repository, opts Options) *Service {
	s := &Service{
		repo:    repo,
		queue:   opts.Queue,
		claimer: opts.Claimer,
		parser:  opts.Parser,
		loc:     opts.Location,
		layout:  opts.TimeLayout,
		now:     opts.Now,
		roster:  roster.New(nil),
		index:   make(map[string]int),
		locks:   make(map[string]*sync.Mutex),
	}
	if s.claimer == nil {
		s.claimer = LocalClaimer{}
	}
	if s.parser == nil {
		s.parser = roster.NewParser()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.layout == "" {
		s.layout = "02/01/2006, 15:04:05"
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Ingest parses an uploaded roster and installs it. On a parse failure the
// previous roster stays in place. Bookkeeping write failures are counted, not fatal.
func (s *Service) Ingest(ctx context.Context, r io.Reader) (IngestSummary, error) {
	students, err := s.parser.ParseReader(r)
	if err != nil {
		return IngestSummary{}, err
	}
	ros := roster.New(students)

	s.mu.Lock()
	s.roster = ros
	s.mu.Unlock()
	metrics.RosterGuests.Set(float64(ros.Len()))

	summary := IngestSummary{
		Students: len(students),
		Guests:   ros.Len(),
		Durable:  s.repo.Durable(),
		Store:    s.repo.StoreName(),
	}
	if summary.Durable {
		summary.Bookkeeped, summary.Failed = s.bookkeep(ctx, students, s.now())
	}
	log.Printf("roster installed: %s", summary.Message())
	return summary, nil
}

func (s *Service) bookkeep(ctx context.Context, students []roster.Student, uploadedAt time.Time) (ok, failed int) {
	write := func(collection string, fields docstore.Fields) {
		var err error
		if s.queue != nil {
			var body []byte
			body, err = json.Marshal(fields)
			if err == nil {
				err = s.queue.Publish(ctx, queue.Message{Type: collection, Body: body})
			}
		} else {
			err = s.repo.put(ctx, collection, fields)
		}
		if err != nil {
			log.Printf("bookkeeping write to %s failed: %v", collection, err)
			failed++
			return
		}
		ok++
	}

	for _, st := range students {
		for _, g := range st.Guests {
			write(docstore.CollectionGuests, guestFields(g))
		}
		write(docstore.CollectionStudents, studentFields(st, uploadedAt))
	}
	return ok, failed
}

// Register checks a guest in. A repeat call returns the original entry with
// Duplicate set. When persistence fails the entry is kept and the store error
// is returned alongside a valid Result.
func (s *Service) Register(ctx context.Context, g roster.Guest) (Result, error) {
	unlock := s.lockGuest(g.ID)
	defer unlock()

	if existing, ok := s.entry(g.ID); ok {
		metrics.CheckIns.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		return Result{Entry: existing, Duplicate: true, Persisted: true}, nil
	}

	now := s.now()
	entry := RegisteredGuest{
		Guest:          g,
		RegisteredAt:   now.UTC(),
		RegisteredTime: now.In(s.loc).Format(s.layout),
	}

	winner, won, err := s.claimer.Claim(ctx, entry)
	if err != nil {
		log.Printf("claim for %s unavailable, registering locally: %v", g.ID, err)
		winner, won = entry, true
	}
	if !won {
		if !s.insert(winner) {
			winner, _ = s.entry(g.ID)
		}
		metrics.CheckIns.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		return Result{Entry: winner, Duplicate: true, Persisted: true}, nil
	}

	if !s.insert(entry) {
		// Load merged a stored check-in for this id while we were claiming.
		existing, _ := s.entry(g.ID)
		metrics.CheckIns.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		return Result{Entry: existing, Duplicate: true, Persisted: true}, nil
	}
	if _, err := s.repo.SaveRegistered(ctx, entry); err != nil {
		metrics.CheckIns.WithLabelValues(metrics.OutcomeUnsaved).Inc()
		return Result{Entry: entry}, err
	}
	metrics.CheckIns.WithLabelValues(metrics.OutcomeRegistered).Inc()
	return Result{Entry: entry, Persisted: true}, nil
}

// RegisterTerm finds a guest by id or name and registers the first match.
func (s *Service) RegisterTerm(ctx context.Context, term string) (Result, error) {
	g, ok := s.Find(term)
	if !ok {
		metrics.CheckIns.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return Result{}, ErrGuestNotFound
	}
	return s.Register(ctx, g)
}

// RegisterID registers the roster guest with the given id.
func (s *Service) RegisterID(ctx context.Context, id string) (Result, error) {
	g, ok := s.Roster().Guest(id)
	if !ok {
		metrics.CheckIns.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return Result{}, ErrGuestNotFound
	}
	return s.Register(ctx, g)
}

// Find matches a term against the current roster, case-insensitively:
// exact id or name substring, first match in roster order.
func (s *Service) Find(term string) (roster.Guest, bool) {
	return s.Roster().Find(term)
}

// Status reports whether id is unknown, pending or registered.
func (s *Service) Status(id string) Lookup {
	if e, ok := s.entry(id); ok {
		return Lookup{Status: StatusRegistered, Guest: e.Guest, Entry: &e}
	}
	if g, ok := s.Roster().Guest(id); ok {
		return Lookup{Status: StatusPending, Guest: g}
	}
	return Lookup{Status: StatusNotFound}
}

// PercentRegistered is the share of roster guests checked in, in [0, 100].
func (s *Service) PercentRegistered() float64 {
	return s.Stats().Percent
}

// Stats counts check-ins against the current roster. Entries loaded from the
// store for guests outside the roster are not counted.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.roster.Len()
	registered := 0
	for _, g := range s.roster.Guests() {
		if _, ok := s.index[g.ID]; ok {
			registered++
		}
	}
	st := Stats{TotalGuests: total, Registered: registered, Pending: total - registered}
	if total > 0 {
		st.Percent = 100 * float64(registered) / float64(total)
	}
	st.Careers = s.careerStats()
	st.CareerCount = len(st.Careers)
	return st
}

// careerStats groups checked-in guests by career. The caller holds s.mu.
func (s *Service) careerStats() []CareerStats {
	totals := make(map[string]int)
	for _, g := range s.roster.Guests() {
		totals[g.Career]++
	}
	pos := make(map[string]int)
	careers := []CareerStats{}
	for _, e := range s.entries {
		i, ok := pos[e.Career]
		if !ok {
			i = len(careers)
			pos[e.Career] = i
			careers = append(careers, CareerStats{Career: e.Career, Total: totals[e.Career]})
		}
		if _, inRoster := s.roster.Guest(e.ID); inRoster {
			careers[i].Registered++
		}
	}
	for i := range careers {
		if c := &careers[i]; c.Total > 0 {
			c.Percent = 100 * float64(c.Registered) / float64(c.Total)
		}
	}
	return careers
}

// Load merges stored check-ins into the ledger, oldest first. Ids already
// present are kept. It returns how many entries were added.
func (s *Service) Load(ctx context.Context) int {
	stored := s.repo.ListRegistered(ctx)
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].RegisteredAt.Before(stored[j].RegisteredAt)
	})
	added := 0
	for _, e := range stored {
		if s.insert(e) {
			added++
		}
	}
	return added
}

// Entries returns the ledger in registration order.
func (s *Service) Entries() []RegisteredGuest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RegisteredGuest(nil), s.entries...)
}

// Roster returns the currently installed roster.
func (s *Service) Roster() *roster.Roster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster
}

// Durable reports whether check-ins are written to a durable store.
func (s *Service) Durable() bool { return s.repo.Durable() }

// StoreName names the active record store.
func (s *Service) StoreName() string { return s.repo.StoreName() }

func (s *Service) entry(id string) (RegisteredGuest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return RegisteredGuest{}, false
	}
	return s.entries[i], true
}

func (s *Service) insert(e RegisteredGuest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[e.ID]; ok {
		return false
	}
	s.index[e.ID] = len(s.entries)
	s.entries = append(s.entries, e)
	metrics.RegisteredGuests.Set(float64(len(s.entries)))
	return true
}

func (s *Service) lockGuest(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
