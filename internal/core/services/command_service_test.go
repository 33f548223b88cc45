package services

import (
	"context"
	"fmt"
	"testing"

	"callplayer/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPrefixes = []string{"/", "!", "."}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		ok   bool
		want Command
	}{
		{"/play lofi beats", true, Command{Name: "play", Args: "lofi beats"}},
		{"!vplay@callplayer_bot  rick roll ", true, Command{Name: "vplay", Args: "rick roll"}},
		{".SKIP", true, Command{Name: "skip"}},
		{"/queue@bot", true, Command{Name: "queue"}},
		{"/play\nlofi beats", true, Command{Name: "play", Args: "lofi beats"}},
		{"/vplay\trick roll", true, Command{Name: "vplay", Args: "rick roll"}},
		{"/play@bot\n\nlofi", true, Command{Name: "play", Args: "lofi"}},
		{"play lofi", false, Command{}},
		{"/", false, Command{}},
		{"", false, Command{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseCommand(tt.text, testPrefixes)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type commandFixture struct {
	gate        *AccessGate
	play        *MockPlayService
	coordinator *MockPlaybackCoordinator
	metrics     *countingMetrics
	service     *CommandService
}

func newCommandFixture() *commandFixture {
	f := &commandFixture{
		gate:        NewAccessGate(domain.AccessGlobal, []domain.UserID{owner}, []domain.UserID{sudoer}).(*AccessGate),
		play:        new(MockPlayService),
		coordinator: new(MockPlaybackCoordinator),
		metrics:     &countingMetrics{},
	}
	f.service = NewCommandService(f.gate, f.play, f.coordinator, f.metrics, testPrefixes, zap.NewNop().Sugar())
	return f
}

func groupCommand(caller domain.UserID, text string) domain.CommandRequest {
	return domain.CommandRequest{Caller: caller, ChatID: testChat, Text: text}
}

func TestCommandService_Play(t *testing.T) {
	f := newCommandFixture()
	f.play.On("Play", mock.Anything, member, testChat, domain.StreamAudio, "lofi").
		Return(&domain.PlaybackResult{Outcome: domain.OutcomeQueued, Position: 3}, nil)

	reply, err := f.service.Execute(context.Background(), groupCommand(member, "/play lofi"))

	require.NoError(t, err)
	assert.Equal(t, "play", reply.Command)
	assert.Equal(t, "Added to queue at #3.", reply.Message)
	assert.Equal(t, 1, f.metrics.commands["play"])
}

func TestCommandService_VPlayUsesVideo(t *testing.T) {
	f := newCommandFixture()
	f.play.On("Play", mock.Anything, member, testChat, domain.StreamVideo, "clip").
		Return(&domain.PlaybackResult{Outcome: domain.OutcomeStarted}, nil)

	reply, err := f.service.Execute(context.Background(), groupCommand(member, "!vplay clip"))

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStarted, reply.Result.Outcome)
}

func TestCommandService_PlayRepliedMedia(t *testing.T) {
	f := newCommandFixture()
	media := domain.ReplyMedia{Kind: domain.MediaVideo, URL: "https://files.example/clip.mp4"}
	f.play.On("PlayMedia", mock.Anything, member, testChat, media).
		Return(&domain.PlaybackResult{Outcome: domain.OutcomeStarted}, nil)

	req := groupCommand(member, "/play")
	req.ReplyMedia = &media
	reply, err := f.service.Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStarted, reply.Result.Outcome)
	f.play.AssertNotCalled(t, "Play", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommandService_PlayNeedsQuery(t *testing.T) {
	f := newCommandFixture()

	_, err := f.service.Execute(context.Background(), groupCommand(member, "/play"))

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	f.play.AssertNotCalled(t, "Play", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommandService_PlayRefusedInPrivate(t *testing.T) {
	f := newCommandFixture()
	req := groupCommand(owner, "/play lofi")
	req.Private = true

	_, err := f.service.Execute(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCommandService_DMPlay(t *testing.T) {
	f := newCommandFixture()
	f.play.On("Play", mock.Anything, owner, domain.ChatID(-100555), domain.StreamAudio, "some song").
		Return(&domain.PlaybackResult{Outcome: domain.OutcomeStarted}, nil)

	req := domain.CommandRequest{Caller: owner, ChatID: domain.ChatID(owner), Private: true, Text: "/dmplay -100555 some song"}
	reply, err := f.service.Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "Started streaming on the voice chat.", reply.Message)
}

func TestCommandService_DMPlayRules(t *testing.T) {
	f := newCommandFixture()
	ctx := context.Background()

	_, err := f.service.Execute(ctx, domain.CommandRequest{Caller: sudoer, Private: true, Text: "/dmplay -100555 x"})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = f.service.Execute(ctx, groupCommand(owner, "/dmplay -100555 x"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.service.Execute(ctx, domain.CommandRequest{Caller: owner, Private: true, Text: "/dmplay notachat x"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.service.Execute(ctx, domain.CommandRequest{Caller: owner, Private: true, Text: "/dmplay -100555"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCommandService_ControlCommandsNeedSudo(t *testing.T) {
	for _, text := range []string{"/pause", "/vresume", "/skip", "/end"} {
		t.Run(text, func(t *testing.T) {
			f := newCommandFixture()
			_, err := f.service.Execute(context.Background(), groupCommand(member, text))
			assert.ErrorIs(t, err, domain.ErrAccessDenied)
		})
	}
}

func TestCommandService_PauseResumeEnd(t *testing.T) {
	f := newCommandFixture()
	ctx := context.Background()
	f.coordinator.On("Pause", mock.Anything, testChat).Return(nil).Once()
	f.coordinator.On("Resume", mock.Anything, testChat).Return(domain.ErrAlreadyPlaying).Once()
	f.coordinator.On("Stop", mock.Anything, testChat).Return(nil).Once()

	reply, err := f.service.Execute(ctx, groupCommand(sudoer, "/vpause"))
	require.NoError(t, err)
	assert.Equal(t, "Stream paused.", reply.Message)

	_, err = f.service.Execute(ctx, groupCommand(sudoer, "/resume"))
	assert.ErrorIs(t, err, domain.ErrAlreadyPlaying)

	_, err = f.service.Execute(ctx, groupCommand(owner, "/end"))
	require.NoError(t, err)

	f.coordinator.AssertExpectations(t)
}

func TestCommandService_Skip(t *testing.T) {
	f := newCommandFixture()
	next := &domain.StreamRequest{ID: "2", Title: "second"}
	f.coordinator.On("Skip", mock.Anything, testChat).
		Return(&domain.AdvanceResult{Outcome: domain.AdvanceNext, Next: next}, nil).Once()
	f.coordinator.On("Queue", testChat).Return([]*domain.StreamRequest{next})

	reply, err := f.service.Execute(context.Background(), groupCommand(sudoer, "/skip"))

	require.NoError(t, err)
	assert.Equal(t, "Skipped. Now streaming second.", reply.Message)
	assert.Len(t, reply.Queue, 1)
}

func TestCommandService_Queue(t *testing.T) {
	f := newCommandFixture()
	f.coordinator.On("Queue", testChat).Return([]*domain.StreamRequest{
		{ID: "1", Title: "first"},
		{ID: "2", Title: "second"},
	})

	reply, err := f.service.Execute(context.Background(), groupCommand(member, "/queue"))

	require.NoError(t, err)
	assert.Equal(t, "Now streaming: first\n#1 second", reply.Message)
}

func TestCommandService_ChangeMode(t *testing.T) {
	f := newCommandFixture()
	ctx := context.Background()

	_, err := f.service.Execute(ctx, groupCommand(sudoer, "/changemode"))
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	reply, err := f.service.Execute(ctx, groupCommand(owner, "/changemode"))
	require.NoError(t, err)
	assert.Equal(t, domain.AccessRestricted, reply.Mode)

	reply, err = f.service.Execute(ctx, domain.CommandRequest{Caller: owner, Private: true, Text: "/changemode"})
	require.NoError(t, err)
	assert.Equal(t, domain.AccessGlobal, reply.Mode)
}

func TestCommandService_SudoList(t *testing.T) {
	f := newCommandFixture()
	ctx := context.Background()
	target := member

	req := groupCommand(owner, "/addsudo")
	req.ReplyTo = &target
	_, err := f.service.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSudo, f.gate.RoleOf(member))

	reply, err := f.service.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Already in sudo list.", reply.Message)

	_, err = f.service.Execute(ctx, groupCommand(owner, fmt.Sprintf("/delsudo %d", member)))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, f.gate.RoleOf(member))

	_, err = f.service.Execute(ctx, groupCommand(owner, "/delsudo"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.service.Execute(ctx, groupCommand(sudoer, "/addsudo 9"))
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestCommandService_Unknown(t *testing.T) {
	f := newCommandFixture()

	_, err := f.service.Execute(context.Background(), groupCommand(member, "/dance"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.service.Execute(context.Background(), groupCommand(member, "hello"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestReplyForError(t *testing.T) {
	assert.Equal(t, "No active voice chat found.", ReplyForError(domain.ErrNoActiveCall))
	assert.Equal(t, "The queue is full, try again later.", ReplyForError(fmt.Errorf("x: %w", domain.ErrQueueFull)))
	assert.Equal(t, "Something went wrong.", ReplyForError(fmt.Errorf("boom")))
	assert.Equal(t, "usage /dmplay <group_chat_id> <song>",
		ReplyForError(fmt.Errorf("%w: usage /dmplay <group_chat_id> <song>", domain.ErrInvalidRequest)))
}
