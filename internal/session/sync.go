package session

import (
	"context"
	"sync"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/feed"
	"github.com/sirupsen/logrus"
)

type State int

const (
	SignedOut State = iota
	Resolving
	Active
)

func (s State) String() string {
	switch s {
	case SignedOut:
		return "signed_out"
	case Resolving:
		return "resolving"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

type Snapshot struct {
	State       State
	PrincipalID string
	Session     *domain.Session
}

// Sync follows the principal signed in on one client and, for that
// principal, its profile record. A principal with no profile record is
// reported as signed out.
type Sync struct {
	clientID   string
	principals *feed.Channel[string]
	profiles   *feed.Channel[*domain.Session]
	log        logrus.FieldLogger

	mu           sync.Mutex
	state        State
	principalID  string
	session      *domain.Session
	gen          uint64
	principal    *feed.Handle[string]
	profile      *feed.Handle[*domain.Session]
	seq          uint64
	listeners    map[int]func(*domain.Session)
	nextListener int
	closed       bool

	emitMu  sync.Mutex
	emitted uint64
}

func NewSync(clientID string, principals *feed.Channel[string], profiles *feed.Channel[*domain.Session], log logrus.FieldLogger) *Sync {
	return &Sync{
		clientID:   clientID,
		principals: principals,
		profiles:   profiles,
		log:        log.WithField("client_id", clientID),
		listeners:  make(map[int]func(*domain.Session)),
	}
}

// Start opens the principal subscription for the client.
func (s *Sync) Start(ctx context.Context) error {
	h, err := s.principals.Open(ctx, s.clientID, s.onPrincipal, s.onPrincipalError)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.Close()
		return nil
	}
	s.principal = h
	s.mu.Unlock()
	return nil
}

func (s *Sync) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:       s.state,
		PrincipalID: s.principalID,
		Session:     cloneSession(s.session),
	}
}

// Subscribe registers fn for session changes; nil means no session.
func (s *Sync) Subscribe(fn func(*domain.Session)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Sync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	principal, profile := s.principal, s.profile
	s.principal, s.profile = nil, nil
	s.mu.Unlock()

	if principal != nil {
		principal.Close()
	}
	if profile != nil {
		profile.Close()
	}
}

func (s *Sync) onPrincipal(principalID string) {
	s.mu.Lock()
	if s.closed || principalID == s.principalID {
		s.mu.Unlock()
		return
	}

	s.gen++
	gen := s.gen
	old := s.profile
	s.profile = nil
	s.principalID = principalID
	if principalID == "" {
		s.state = SignedOut
	} else {
		s.state = Resolving
	}
	state := s.state
	emit := s.setSession(nil)
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	emit()
	s.log.WithFields(logrus.Fields{"principal_id": principalID, "state": state}).Debug("principal changed")

	if principalID == "" {
		return
	}

	h, err := s.profiles.Open(context.Background(), principalID,
		func(rec *domain.Session) { s.onProfile(gen, principalID, rec) },
		func(err error) {
			s.log.WithField("principal_id", principalID).WithError(err).Warn("profile feed error")
		})
	if err != nil {
		s.log.WithField("principal_id", principalID).WithError(err).Error("failed to open profile feed")
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		// a newer principal arrived while the feed was opening
		s.mu.Unlock()
		h.Close()
		return
	}
	s.profile = h
	s.mu.Unlock()
}

func (s *Sync) onPrincipalError(err error) {
	s.log.WithError(err).Warn("principal feed error")
}

func (s *Sync) onProfile(gen uint64, principalID string, rec *domain.Session) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}

	var emit func()
	if rec == nil {
		s.state = SignedOut
		emit = s.setSession(nil)
	} else {
		next := *rec
		if next.ID == "" {
			next.ID = principalID
		}
		s.state = Active
		emit = s.setSession(&next)
	}
	s.mu.Unlock()

	emit()
}

// setSession must be called with mu held. The returned func notifies
// listeners and must be called after mu is released.
func (s *Sync) setSession(next *domain.Session) func() {
	if sameSession(s.session, next) {
		return func() {}
	}
	s.session = next
	s.seq++
	seq := s.seq
	value := cloneSession(next)
	listeners := make([]func(*domain.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}

	return func() {
		s.emitMu.Lock()
		defer s.emitMu.Unlock()
		if seq <= s.emitted {
			return
		}
		s.emitted = seq
		for _, fn := range listeners {
			fn(cloneSession(value))
		}
	}
}

func sameSession(a, b *domain.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneSession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
