package profile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/progression"
	"github.com/ernie/shoot-or-shield/internal/storage"
)

// ErrNoProfile is returned when no profile exists yet
var ErrNoProfile = errors.New("no profile")

const uploadTimeout = 10 * time.Second

// Service owns profile persistence: the local store, the optional remote
// copy and the midnight rollover for profiles in use.
type Service struct {
	store  *storage.Store
	remote Remote
	clock  clockwork.Clock

	mu      sync.Mutex
	rng     *rand.Rand
	active  map[string]bool
	locks   map[string]*sync.Mutex
	sched   gocron.Scheduler
	uploads chan domain.Profile
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a service. remote may be nil.
func NewService(store *storage.Store, remote Remote, clock clockwork.Clock, rng *rand.Rand) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Service{
		store:   store,
		remote:  remote,
		clock:   clock,
		rng:     rng,
		active:  make(map[string]bool),
		locks:   make(map[string]*sync.Mutex),
		uploads: make(chan domain.Profile, 32),
		done:    make(chan struct{}),
	}
}

// Start schedules the daily rollover and the upload worker
func (s *Service) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.clock), gocron.WithLocation(time.Local))
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 1))),
		gocron.NewTask(func() {
			if n := s.Rollover(context.Background()); n > 0 {
				log.Printf("Profiles: daily rollover applied to %d profiles", n)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("scheduling rollover: %w", err)
	}
	sched.Start()
	s.sched = sched

	if s.remote != nil {
		s.wg.Add(1)
		go s.uploadLoop()
	}
	return nil
}

// Stop shuts down the scheduler and flushes nothing further
func (s *Service) Stop() {
	log.Println("Profiles: stopping...")
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			log.Printf("Warning: scheduler shutdown: %v", err)
		}
	}
	close(s.done)
	s.wg.Wait()
}

func (s *Service) uploadLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case p := <-s.uploads:
			ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
			if err := s.remote.Upload(ctx, p); err != nil {
				log.Printf("Warning: remote sync of %s failed: %v", p.Name, err)
			}
			cancel()
		}
	}
}

// Create makes and stores a new profile
func (s *Service) Create(ctx context.Context, name string) (domain.Profile, error) {
	s.mu.Lock()
	p := progression.NewProfile(name, s.clock.Now(), s.rng)
	s.mu.Unlock()
	if err := s.Save(ctx, p); err != nil {
		return p, err
	}
	log.Printf("Profiles: created %s (%s)", p.Name, p.ID)
	return p, nil
}

// Load returns the profile, falling back to the remote copy. It returns
// nil without error when neither has it.
func (s *Service) Load(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if s.remote == nil {
		return nil, nil
	}
	p, err = s.remote.Download(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	if err := s.store.SaveProfile(ctx, *p); err != nil {
		return nil, err
	}
	log.Printf("Profiles: restored %s from remote", p.Name)
	return p, nil
}

// Current returns the most recently saved local profile
func (s *Service) Current(ctx context.Context) (*domain.Profile, error) {
	all, err := s.store.GetProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNoProfile
	}
	return &all[0], nil
}

// Save writes locally and queues a remote upload
func (s *Service) Save(ctx context.Context, p domain.Profile) error {
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return err
	}
	if s.remote == nil {
		return nil
	}
	select {
	case s.uploads <- p:
	default:
		log.Printf("Warning: remote sync queue full, skipping %s", p.Name)
	}
	return nil
}

// lockFor returns the mutex serializing updates to one profile
func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Update loads id, applies fn and saves the result. Updates to the same
// profile run one at a time; fn must not call Update.
func (s *Service) Update(ctx context.Context, id string, fn func(domain.Profile) (domain.Profile, error)) (domain.Profile, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	cur, err := s.Load(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if cur == nil {
		return domain.Profile{}, ErrNoProfile
	}
	next, err := fn(*cur)
	if err != nil {
		return *cur, err
	}
	if err := s.Save(ctx, next); err != nil {
		return *cur, err
	}
	return next, nil
}

// Login applies the daily rollover and marks the profile active so the
// midnight job keeps it current
func (s *Service) Login(ctx context.Context, id string) (domain.Profile, bool, error) {
	rolled := false
	p, err := s.Update(ctx, id, func(p domain.Profile) (domain.Profile, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		p, rolled = progression.Login(p, s.clock.Now(), s.rng)
		return p, nil
	})
	if err != nil {
		return p, false, err
	}
	s.mu.Lock()
	s.active[id] = true
	s.mu.Unlock()
	return p, rolled, nil
}

// Logout stops the rollover job from touching id
func (s *Service) Logout(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Rollover runs the login rollover for every active profile and returns
// how many rolled into a new day
func (s *Service) Rollover(ctx context.Context) int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	n := 0
	for _, id := range ids {
		_, rolled, err := s.Login(ctx, id)
		if err != nil {
			log.Printf("Warning: rollover for %s: %v", id, err)
			continue
		}
		if rolled {
			n++
		}
	}
	return n
}

// ApplyMatch folds a finished match into the profile
func (s *Service) ApplyMatch(ctx context.Context, id string, summary *domain.MatchSummary, selfID string) (domain.Profile, progression.Result, error) {
	var res progression.Result
	p, err := s.Update(ctx, id, func(p domain.Profile) (domain.Profile, error) {
		var err error
		p, res, err = progression.ApplyMatch(p, summary, selfID, s.clock.Now())
		return p, err
	})
	return p, res, err
}

// Leaderboard returns the top local profiles by ELO
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error) {
	return s.store.GetLeaderboard(ctx, limit)
}
