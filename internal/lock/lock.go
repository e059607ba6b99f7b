// Package lock implements advisory page locks.
//
// A lock records who is editing a page and until when. Locks are advisory:
// saving a page never checks them. Lock on a page that is already locked
// returns nil instead of blocking. Expired locks are removed by a sweeper
// goroutine that starts with the first Lock call and stops on Close.
package lock

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpl-au/wikid/internal/log"
)

// Defaults for Options.
const (
	DefaultExpiry = 60 * time.Minute
	DefaultSweep  = 60 * time.Second
)

// PageLock is one held lock. Treat it as read-only.
type PageLock struct {
	ID       string    `json:"id"`
	Page     string    `json:"page"`
	Locker   string    `json:"locker"`
	Acquired time.Time `json:"acquired"`
	Expiry   time.Time `json:"expiry"`
}

// Expired reports whether the lock had expired at t.
func (l *PageLock) Expired(t time.Time) bool { return !t.Before(l.Expiry) }

// TimeLeft returns how long the lock has left at t, or zero.
func (l *PageLock) TimeLeft(t time.Time) time.Duration {
	return max(l.Expiry.Sub(t), 0)
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	Expiry time.Duration
	Sweep  time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Manager holds the lock table for one wiki. Page names are compared
// case-insensitively.
type Manager struct {
	expiry time.Duration
	sweep  time.Duration
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*PageLock

	start  sync.Once
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// NewManager returns a Manager. No goroutine runs until the first Lock.
func NewManager(opts Options) *Manager {
	m := &Manager{
		expiry: opts.Expiry,
		sweep:  opts.Sweep,
		now:    opts.Now,
		locks:  make(map[string]*PageLock),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if m.expiry <= 0 {
		m.expiry = DefaultExpiry
	}
	if m.sweep <= 0 {
		m.sweep = DefaultSweep
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func key(page string) string { return strings.ToLower(page) }

// Lock acquires page for user. It returns nil if another unexpired lock is
// held, whoever holds it.
func (m *Manager) Lock(page, user string) *PageLock {
	m.start.Do(func() { go m.reaper() })

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cur, ok := m.locks[key(page)]; ok && !cur.Expired(now) {
		return nil
	}
	l := &PageLock{
		ID:       uuid.NewString(),
		Page:     page,
		Locker:   user,
		Acquired: now,
		Expiry:   now.Add(m.expiry),
	}
	m.locks[key(page)] = l
	log.Event("lock", "acquire").Author(user).Page(page).Write(nil)
	return l
}

// Unlock releases l. Releasing a lock that has expired or been replaced
// does nothing.
func (m *Manager) Unlock(l *PageLock) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.locks[key(l.Page)]; ok && cur.ID == l.ID {
		delete(m.locks, key(l.Page))
		log.Event("lock", "release").Author(l.Locker).Page(l.Page).Write(nil)
	}
}

// Current returns the unexpired lock on page, or nil.
func (m *Manager) Current(page string) *PageLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.locks[key(page)]
	if !ok || cur.Expired(m.now()) {
		return nil
	}
	c := *cur
	return &c
}

// Active returns every unexpired lock, sorted by page.
func (m *Manager) Active() []PageLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]PageLock, 0, len(m.locks))
	for _, l := range m.locks {
		if !l.Expired(now) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

// Reap removes expired locks and returns how many were removed.
func (m *Manager) Reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, l := range m.locks {
		if l.Expired(now) {
			delete(m.locks, k)
			n++
		}
	}
	return n
}

func (m *Manager) reaper() {
	defer close(m.done)
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				log.Event("lock", "expire").Detail("count", n).Write(nil)
			}
		case <-m.stop:
			return
		}
	}
}

// Close stops the sweeper if it was started. Locks stay readable.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	started := true
	m.start.Do(func() { started = false })
	close(m.stop)
	if started {
		<-m.done
	}
}
