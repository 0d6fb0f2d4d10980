package core

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DestinationLocks serializes installs that touch the same destination path.
// Locks are created on demand and dropped once nobody holds or waits on them.
type DestinationLocks struct {
	mutex sync.Mutex
	locks map[string]*destinationLock
}

type destinationLock struct {
	semaphore *semaphore.Weighted
	users     int
}

func NewDestinationLocks() *DestinationLocks {
	return &DestinationLocks{locks: make(map[string]*destinationLock)}
}

// Acquire locks every path (in sorted order, so overlapping sets cannot
// deadlock). On error nothing remains held.
func (this *DestinationLocks) Acquire(ctx context.Context, paths []string) (release func(), err error) {
	ordered := distinct(paths)
	held := make([]string, 0, len(ordered))
	release = func() {
		for x := len(held) - 1; x >= 0; x-- {
			this.unlock(held[x])
		}
		held = held[:0]
	}
	for _, path := range ordered {
		lock := this.checkout(path)
		if err = lock.Acquire(ctx, 1); err != nil {
			this.checkin(path)
			release()
			return func() {}, err
		}
		held = append(held, path)
	}
	return release, nil
}

func (this *DestinationLocks) checkout(path string) *semaphore.Weighted {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	lock, found := this.locks[path]
	if !found {
		lock = &destinationLock{semaphore: semaphore.NewWeighted(1)}
		this.locks[path] = lock
	}
	lock.users++
	return lock.semaphore
}

func (this *DestinationLocks) unlock(path string) {
	this.mutex.Lock()
	lock := this.locks[path]
	this.mutex.Unlock()
	lock.semaphore.Release(1)
	this.checkin(path)
}

func (this *DestinationLocks) checkin(path string) {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	lock := this.locks[path]
	lock.users--
	if lock.users == 0 {
		delete(this.locks, path)
	}
}

func (this *DestinationLocks) size() int {
	this.mutex.Lock()
	defer this.mutex.Unlock()
	return len(this.locks)
}

func distinct(paths []string) (ordered []string) {
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if _, found := seen[path]; found {
			continue
		}
		seen[path] = struct{}{}
		ordered = append(ordered, path)
	}
	sort.Strings(ordered)
	return ordered
}
