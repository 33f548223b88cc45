package memory

import (
	"sync"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
)

type MemoryQueueStore struct {
	queues map[domain.ChatID][]*domain.StreamRequest
	mu     sync.RWMutex
}

func NewMemoryQueueStore() ports.QueueStore {
	return &MemoryQueueStore{
		queues: make(map[domain.ChatID][]*domain.StreamRequest),
	}
}

func (s *MemoryQueueStore) Enqueue(chatID domain.ChatID, req *domain.StreamRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queues[chatID] = append(s.queues[chatID], req)
	return len(s.queues[chatID]) - 1
}

func (s *MemoryQueueStore) PopFront(chatID domain.ChatID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[chatID]
	if !ok || len(q) == 0 {
		return
	}
	q[0] = nil
	q = q[1:]
	if len(q) == 0 {
		// An empty queue and an absent one mean the same thing.
		delete(s.queues, chatID)
		return
	}
	s.queues[chatID] = q
}

func (s *MemoryQueueStore) PeekFront(chatID domain.ChatID) (*domain.StreamRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.queues[chatID]
	if len(q) == 0 {
		return nil, false
	}
	return q[0], true
}

func (s *MemoryQueueStore) Clear(chatID domain.ChatID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, chatID)
}

func (s *MemoryQueueStore) List(chatID domain.ChatID) []*domain.StreamRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.queues[chatID]
	out := make([]*domain.StreamRequest, len(q))
	copy(out, q)
	return out
}

func (s *MemoryQueueStore) Len(chatID domain.ChatID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queues[chatID])
}

func (s *MemoryQueueStore) Chats() []domain.ChatID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]domain.ChatID, 0, len(s.queues))
	for id := range s.queues {
		chats = append(chats, id)
	}
	return chats
}
