// locks.go exposes the advisory page locks.
//
// Locks live in memory, so they only coordinate editors of one long-running
// process (serve --http or serve --mcp). Writers are never blocked by a
// lock; it is for detecting concurrent edits.

package wiki

import (
	"context"
	"fmt"
	"time"

	"github.com/jpl-au/wikid/internal/lock"
	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/service"
)

// lockKey names a page in the lock table. In the content repository
// differently spelt names of one page share a lock.
func (s *Service) lockKey(name string) string {
	if s.content != nil {
		return s.content.Path(name).String()
	}
	return name
}

// Lock takes the lock on name for user.
func (s *Service) Lock(ctx context.Context, name, user string) (*lock.PageLock, error) {
	key := s.lockKey(name)
	if l := s.locks.Lock(key, user); l != nil {
		return l, nil
	}
	cur := s.locks.Current(key)
	if cur == nil {
		// Released between the two calls.
		return s.Lock(ctx, name, user)
	}
	if cur.Locker == user {
		return cur, nil
	}
	return cur, fmt.Errorf("%s: %w by %s for %s", name, service.ErrLocked, cur.Locker,
		cur.TimeLeft(time.Now()).Round(time.Second))
}

// Unlock releases the lock on name.
func (s *Service) Unlock(_ context.Context, name, user string, force bool) error {
	cur := s.locks.Current(s.lockKey(name))
	if cur == nil {
		return fmt.Errorf("%s: %w", name, service.ErrNotLocked)
	}
	if cur.Locker != user && !force {
		return fmt.Errorf("%s: %w (%s)", name, service.ErrNotLockHolder, cur.Locker)
	}
	if cur.Locker != user {
		log.Event("wiki:lock", "break").Author(user).Page(name).Detail("holder", cur.Locker).Warn(nil)
	}
	s.locks.Unlock(cur)
	return nil
}

// Locks returns the active locks.
func (s *Service) Locks() []lock.PageLock {
	return s.locks.Active()
}
