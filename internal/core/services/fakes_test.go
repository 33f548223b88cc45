package services

import (
	"context"
	"sync"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// fakeTransport models voice chats the way the bridge reports them: a chat
// must have an open voice chat before Play can join it.
type fakeTransport struct {
	mu         sync.Mutex
	voiceChats map[domain.ChatID]bool
	calls      map[domain.ChatID]domain.NativeCallStatus
	played     map[domain.ChatID][]domain.StreamDescriptor
	leaves     map[domain.ChatID]int
	playErrs   map[string]error // keyed by MediaPath, returned before the stream starts
	ackErrs    map[string]error // keyed by MediaPath, returned after the stream starts
	playHook   func()
	statusErr  error
}

func newFakeTransport(openChats ...domain.ChatID) *fakeTransport {
	t := &fakeTransport{
		voiceChats: make(map[domain.ChatID]bool),
		calls:      make(map[domain.ChatID]domain.NativeCallStatus),
		played:     make(map[domain.ChatID][]domain.StreamDescriptor),
		leaves:     make(map[domain.ChatID]int),
		playErrs:   make(map[string]error),
		ackErrs:    make(map[string]error),
	}
	for _, id := range openChats {
		t.voiceChats[id] = true
	}
	return t
}

// join puts the account into chatID's voice chat without streaming.
func (t *fakeTransport) join(chatID domain.ChatID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.voiceChats[chatID] = true
	t.calls[chatID] = domain.NativeStatusIdle
}

func (t *fakeTransport) Play(ctx context.Context, chatID domain.ChatID, desc domain.StreamDescriptor) error {
	if t.playHook != nil {
		t.playHook()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err, ok := t.playErrs[desc.MediaPath]; ok {
		return err
	}
	if !t.voiceChats[chatID] {
		return domain.ErrNoActiveCall
	}
	t.calls[chatID] = domain.NativeStatusPlaying
	t.played[chatID] = append(t.played[chatID], desc)
	if err, ok := t.ackErrs[desc.MediaPath]; ok {
		return err
	}
	return ctx.Err()
}

func (t *fakeTransport) Leave(_ context.Context, chatID domain.ChatID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.leaves[chatID]++
	if _, ok := t.calls[chatID]; !ok {
		return domain.ErrNotInCall
	}
	delete(t.calls, chatID)
	return nil
}

func (t *fakeTransport) Pause(_ context.Context, chatID domain.ChatID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[chatID] = domain.NativeStatusPaused
	return nil
}

func (t *fakeTransport) Resume(_ context.Context, chatID domain.ChatID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[chatID] = domain.NativeStatusPlaying
	return nil
}

func (t *fakeTransport) ActiveCalls(context.Context) (map[domain.ChatID]domain.NativeCallStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusErr != nil {
		return nil, t.statusErr
	}
	out := make(map[domain.ChatID]domain.NativeCallStatus, len(t.calls))
	for k, v := range t.calls {
		out[k] = v
	}
	return out, nil
}

func (t *fakeTransport) Self(context.Context) (domain.UserID, error) {
	return 42, nil
}

func (t *fakeTransport) playedPaths(chatID domain.ChatID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for _, d := range t.played[chatID] {
		out = append(out, d.MediaPath)
	}
	return out
}

func (t *fakeTransport) leaveCount(chatID domain.ChatID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaves[chatID]
}

type MockMediaResolver struct {
	mock.Mock
}

func (m *MockMediaResolver) Resolve(ctx context.Context, query string) (*domain.ResolvedMedia, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResolvedMedia), args.Error(1)
}

type MockResolutionCache struct {
	mock.Mock
}

func (m *MockResolutionCache) Get(ctx context.Context, key string) (*domain.ResolvedMedia, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResolvedMedia), args.Error(1)
}

func (m *MockResolutionCache) Set(ctx context.Context, key string, media *domain.ResolvedMedia, ttl time.Duration) error {
	args := m.Called(ctx, key, media, ttl)
	return args.Error(0)
}

type MockPlaybackCoordinator struct {
	mock.Mock
}

func (m *MockPlaybackCoordinator) StartOrEnqueue(ctx context.Context, req *domain.StreamRequest) (*domain.PlaybackResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlaybackResult), args.Error(1)
}

func (m *MockPlaybackCoordinator) Advance(ctx context.Context, chatID domain.ChatID) (*domain.AdvanceResult, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdvanceResult), args.Error(1)
}

func (m *MockPlaybackCoordinator) Teardown(ctx context.Context, chatID domain.ChatID) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *MockPlaybackCoordinator) Pause(ctx context.Context, chatID domain.ChatID) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *MockPlaybackCoordinator) Resume(ctx context.Context, chatID domain.ChatID) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *MockPlaybackCoordinator) Skip(ctx context.Context, chatID domain.ChatID) (*domain.AdvanceResult, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdvanceResult), args.Error(1)
}

func (m *MockPlaybackCoordinator) Stop(ctx context.Context, chatID domain.ChatID) error {
	return m.Called(ctx, chatID).Error(0)
}

func (m *MockPlaybackCoordinator) Queue(chatID domain.ChatID) []*domain.StreamRequest {
	args := m.Called(chatID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*domain.StreamRequest)
}

func (m *MockPlaybackCoordinator) ActiveChats() []domain.ChatID {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.ChatID)
}

type MockPlayService struct {
	mock.Mock
}

func (m *MockPlayService) Play(ctx context.Context, caller domain.UserID, chatID domain.ChatID, streamType domain.StreamType, query string) (*domain.PlaybackResult, error) {
	args := m.Called(ctx, caller, chatID, streamType, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlaybackResult), args.Error(1)
}

func (m *MockPlayService) PlayMedia(ctx context.Context, caller domain.UserID, chatID domain.ChatID, media domain.ReplyMedia) (*domain.PlaybackResult, error) {
	args := m.Called(ctx, caller, chatID, media)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PlaybackResult), args.Error(1)
}

// countingMetrics records the counters tests care about.
type countingMetrics struct {
	NopMetrics

	mu          sync.Mutex
	starts      int
	enqueues    int
	teardowns   int
	events      []domain.EventKind
	resolutions []bool
	commands    map[string]int
}

func (m *countingMetrics) RecordStart(domain.StreamType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
}

func (m *countingMetrics) RecordEnqueue(domain.StreamType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueues++
}

func (m *countingMetrics) RecordTeardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardowns++
}

func (m *countingMetrics) RecordEvent(kind domain.EventKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, kind)
}

func (m *countingMetrics) RecordResolution(cached bool, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions = append(m.resolutions, cached)
}

func (m *countingMetrics) RecordCommand(name string, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commands == nil {
		m.commands = make(map[string]int)
	}
	m.commands[name]++
}

type coordinatorFixture struct {
	transport   *fakeTransport
	queue       ports.QueueStore
	metrics     *countingMetrics
	coordinator *playbackCoordinator
}

func newCoordinatorFixture(maxQueue int, openChats ...domain.ChatID) *coordinatorFixture {
	f := &coordinatorFixture{
		transport: newFakeTransport(openChats...),
		queue:     memory.NewMemoryQueueStore(),
		metrics:   &countingMetrics{},
	}
	f.coordinator = NewPlaybackCoordinator(
		f.queue,
		f.transport,
		NewCallStateReader(f.transport),
		f.metrics,
		CoordinatorConfig{MaxQueueLength: maxQueue},
		zap.NewNop().Sugar(),
	).(*playbackCoordinator)
	return f
}

func audioRequest(chatID domain.ChatID, path string) *domain.StreamRequest {
	return &domain.StreamRequest{
		ID:     path,
		ChatID: chatID,
		Type:   domain.StreamAudio,
		Title:  path,
		Descriptor: domain.StreamDescriptor{
			MediaPath: path,
		},
	}
}

func requestIDs(reqs []*domain.StreamRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return out
}
