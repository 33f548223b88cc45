package services

import (
	"context"
	"sync"

	"callplayer/internal/core/domain"
)

type chatLock struct {
	ch   chan struct{}
	refs int
}

// chatLocks hands out one exclusive scope per chat. Entries are dropped once
// nobody holds or waits for them, so idle chats cost nothing.
type chatLocks struct {
	mu    sync.Mutex
	locks map[domain.ChatID]*chatLock
}

func newChatLocks() *chatLocks {
	return &chatLocks{locks: make(map[domain.ChatID]*chatLock)}
}

// Lock blocks until the chat's scope is free or ctx is done.
func (l *chatLocks) Lock(ctx context.Context, chatID domain.ChatID) (func(), error) {
	l.mu.Lock()
	cl, ok := l.locks[chatID]
	if !ok {
		cl = &chatLock{ch: make(chan struct{}, 1)}
		l.locks[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-cl.ch
				l.release(chatID, cl)
			})
		}, nil
	case <-ctx.Done():
		l.release(chatID, cl)
		return nil, ctx.Err()
	}
}

func (l *chatLocks) release(chatID domain.ChatID, cl *chatLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl.refs--
	if cl.refs == 0 {
		delete(l.locks, chatID)
	}
}

func (l *chatLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
