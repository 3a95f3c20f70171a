package scheduler

import (
	"context"
	"sync"
)

// Locker grants exclusive access to a billing run. TryLock never waits: ok is
// false when another run holds the lock. lost is closed if the lock is taken
// away while held; it is nil for locks that cannot be lost. release must be
// called exactly once the run is over.
type Locker interface {
	TryLock(ctx context.Context) (release func(), lost <-chan struct{}, ok bool, err error)
}

// LocalLocker serializes runs inside one process
type LocalLocker struct {
	mu sync.Mutex
}

// TryLock implements Locker
func (l *LocalLocker) TryLock(ctx context.Context) (func(), <-chan struct{}, bool, error) {
	if !l.mu.TryLock() {
		return nil, nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil, true, nil
}

// MultiLocker takes every lock in order and gives them back in reverse. It
// lets a process guard against its own overlapping runs before asking a
// shared lock. The combined lock is lost as soon as any of its locks is.
type MultiLocker []Locker

// TryLock implements Locker
func (m MultiLocker) TryLock(ctx context.Context) (func(), <-chan struct{}, bool, error) {
	releases := make([]func(), 0, len(m))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	var losts []<-chan struct{}
	for _, l := range m {
		release, lost, ok, err := l.TryLock(ctx)
		if err != nil || !ok {
			releaseAll()
			return nil, nil, false, err
		}
		releases = append(releases, release)
		if lost != nil {
			losts = append(losts, lost)
		}
	}

	if len(losts) == 0 {
		var once sync.Once
		return func() { once.Do(releaseAll) }, nil, true, nil
	}

	lost := make(chan struct{})
	stop := make(chan struct{})
	var lostOnce sync.Once
	var wg sync.WaitGroup
	for _, child := range losts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-child:
				lostOnce.Do(func() { close(lost) })
			case <-stop:
			}
		}()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			releaseAll()
		})
	}
	return release, lost, true, nil
}
