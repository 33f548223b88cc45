package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"

	"go.uber.org/zap"
)

// Command is a parsed chat command: "/vplay@bot lofi" gives Name "vplay"
// and Args "lofi".
type Command struct {
	Name string
	Args string
}

// ParseCommand recognises text starting with one of prefixes.
func ParseCommand(text string, prefixes []string) (Command, bool) {
	text = strings.TrimSpace(text)
	for _, p := range prefixes {
		if p == "" || !strings.HasPrefix(text, p) {
			continue
		}
		name, args := strings.TrimPrefix(text, p), ""
		if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
			name, args = name[:i], name[i:]
		}
		name, _, _ = strings.Cut(name, "@")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return Command{}, false
		}
		return Command{Name: name, Args: strings.TrimSpace(args)}, true
	}
	return Command{}, false
}

type commandHandler func(ctx context.Context, req domain.CommandRequest, cmd Command) (*domain.CommandReply, error)

type commandDef struct {
	role    domain.Role
	private bool // true: private chats only, false: group chats only
	handle  commandHandler
}

// CommandService routes chat commands to the player. Permission checks here
// cover admin commands; playback submission is gated by the AccessGate.
type CommandService struct {
	gate        ports.AccessGate
	play        ports.PlayService
	coordinator ports.PlaybackCoordinator
	metrics     ports.CommandMetrics
	prefixes    []string
	logger      *zap.SugaredLogger

	commands map[string]commandDef
}

func NewCommandService(
	gate ports.AccessGate,
	play ports.PlayService,
	coordinator ports.PlaybackCoordinator,
	metrics ports.CommandMetrics,
	prefixes []string,
	logger *zap.SugaredLogger,
) *CommandService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	s := &CommandService{
		gate:        gate,
		play:        play,
		coordinator: coordinator,
		metrics:     metrics,
		prefixes:    prefixes,
		logger:      logger,
	}

	s.commands = map[string]commandDef{
		"play":       {role: domain.RoleMember, handle: s.playCmd(domain.StreamAudio)},
		"vplay":      {role: domain.RoleMember, handle: s.playCmd(domain.StreamVideo)},
		"dmplay":     {role: domain.RoleOwner, private: true, handle: s.dmPlay},
		"pause":      {role: domain.RoleSudo, handle: s.pause},
		"vpause":     {role: domain.RoleSudo, handle: s.pause},
		"resume":     {role: domain.RoleSudo, handle: s.resume},
		"vresume":    {role: domain.RoleSudo, handle: s.resume},
		"skip":       {role: domain.RoleSudo, handle: s.skip},
		"vskip":      {role: domain.RoleSudo, handle: s.skip},
		"end":        {role: domain.RoleSudo, handle: s.end},
		"vend":       {role: domain.RoleSudo, handle: s.end},
		"queue":      {role: domain.RoleMember, handle: s.queue},
		"changemode": {role: domain.RoleOwner, handle: s.changeMode},
		"addsudo":    {role: domain.RoleOwner, handle: s.addSudo},
		"delsudo":    {role: domain.RoleOwner, handle: s.delSudo},
	}
	return s
}

// Execute parses and runs req.Text.
func (s *CommandService) Execute(ctx context.Context, req domain.CommandRequest) (*domain.CommandReply, error) {
	cmd, ok := ParseCommand(req.Text, s.prefixes)
	if !ok {
		return nil, fmt.Errorf("%w: not a command", domain.ErrInvalidRequest)
	}

	def, ok := s.commands[cmd.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", domain.ErrInvalidRequest, cmd.Name)
	}

	reply, err := s.run(ctx, req, cmd, def)
	s.metrics.RecordCommand(cmd.Name, err)
	if err != nil {
		s.logger.Debugw("command failed",
			"command", cmd.Name,
			"chat_id", req.ChatID,
			"user_id", req.Caller,
			"error", err,
		)
		return nil, err
	}
	reply.Command = cmd.Name
	return reply, nil
}

func (s *CommandService) run(ctx context.Context, req domain.CommandRequest, cmd Command, def commandDef) (*domain.CommandReply, error) {
	// Admin commands apply to whatever chat they name, so they are allowed
	// in private chats as well.
	if def.role != domain.RoleOwner || def.private {
		if req.Private != def.private {
			where := "group chats"
			if def.private {
				where = "private chats"
			}
			return nil, fmt.Errorf("%w: /%s only works in %s", domain.ErrInvalidRequest, cmd.Name, where)
		}
	}
	if !s.gate.RoleOf(req.Caller).AtLeast(def.role) {
		return nil, domain.ErrAccessDenied
	}
	return def.handle(ctx, req, cmd)
}

func (s *CommandService) playCmd(streamType domain.StreamType) commandHandler {
	return func(ctx context.Context, req domain.CommandRequest, cmd Command) (*domain.CommandReply, error) {
		var (
			res *domain.PlaybackResult
			err error
		)
		switch {
		case req.ReplyMedia != nil:
			res, err = s.play.PlayMedia(ctx, req.Caller, req.ChatID, *req.ReplyMedia)
		case cmd.Args == "":
			return nil, fmt.Errorf("%w: give me a query to stream %s on the voice chat", domain.ErrInvalidRequest, streamType)
		default:
			res, err = s.play.Play(ctx, req.Caller, req.ChatID, streamType, cmd.Args)
		}
		if err != nil {
			return nil, err
		}
		return &domain.CommandReply{Message: playbackMessage(res), Result: res}, nil
	}
}

func (s *CommandService) dmPlay(ctx context.Context, req domain.CommandRequest, cmd Command) (*domain.CommandReply, error) {
	target, query, _ := strings.Cut(cmd.Args, " ")
	query = strings.TrimSpace(query)
	chatID, err := domain.ParseChatID(target)
	if err != nil || query == "" {
		return nil, fmt.Errorf("%w: usage /dmplay <group_chat_id> <song>", domain.ErrInvalidRequest)
	}

	res, err := s.play.Play(ctx, req.Caller, chatID, domain.StreamAudio, query)
	if err != nil {
		return nil, err
	}
	return &domain.CommandReply{Message: playbackMessage(res), Result: res}, nil
}

func (s *CommandService) pause(ctx context.Context, req domain.CommandRequest, _ Command) (*domain.CommandReply, error) {
	if err := s.coordinator.Pause(ctx, req.ChatID); err != nil {
		return nil, err
	}
	return &domain.CommandReply{Message: "Stream paused."}, nil
}

func (s *CommandService) resume(ctx context.Context, req domain.CommandRequest, _ Command) (*domain.CommandReply, error) {
	if err := s.coordinator.Resume(ctx, req.ChatID); err != nil {
		return nil, err
	}
	return &domain.CommandReply{Message: "Stream resumed."}, nil
}

func (s *CommandService) skip(ctx context.Context, req domain.CommandRequest, _ Command) (*domain.CommandReply, error) {
	res, err := s.coordinator.Skip(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	if res.Outcome == domain.AdvanceStopped {
		return &domain.CommandReply{Message: "Queue is empty, left the voice chat."}, nil
	}
	return &domain.CommandReply{
		Message: fmt.Sprintf("Skipped. Now streaming %s.", res.Next.Title),
		Queue:   s.coordinator.Queue(req.ChatID),
	}, nil
}

func (s *CommandService) end(ctx context.Context, req domain.CommandRequest, _ Command) (*domain.CommandReply, error) {
	if err := s.coordinator.Stop(ctx, req.ChatID); err != nil {
		return nil, err
	}
	return &domain.CommandReply{Message: "Stopped streaming and left the voice chat."}, nil
}

func (s *CommandService) queue(_ context.Context, req domain.CommandRequest, _ Command) (*domain.CommandReply, error) {
	q := s.coordinator.Queue(req.ChatID)
	if len(q) == 0 {
		return &domain.CommandReply{Message: "Queue is empty.", Queue: q}, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Now streaming: %s", q[0].Title)
	for i, r := range q[1:] {
		fmt.Fprintf(&b, "\n#%d %s", i+1, r.Title)
	}
	return &domain.CommandReply{Message: b.String(), Queue: q}, nil
}

func (s *CommandService) changeMode(_ context.Context, _ domain.CommandRequest, _ Command) (*domain.CommandReply, error) {
	mode := s.gate.ToggleMode()
	s.logger.Infow("access mode changed", "mode", mode)

	msg := "Switched to global mode."
	if mode == domain.AccessRestricted {
		msg = "Switched to sudo mode."
	}
	return &domain.CommandReply{Message: msg, Mode: mode}, nil
}

func (s *CommandService) addSudo(_ context.Context, req domain.CommandRequest, cmd Command) (*domain.CommandReply, error) {
	user, err := targetUser(req, cmd, "add to")
	if err != nil {
		return nil, err
	}
	if !s.gate.AddPrivileged(user) {
		return &domain.CommandReply{Message: "Already in sudo list."}, nil
	}
	s.logger.Infow("sudo user added", "user_id", user)
	return &domain.CommandReply{Message: "Added to sudo users."}, nil
}

func (s *CommandService) delSudo(_ context.Context, req domain.CommandRequest, cmd Command) (*domain.CommandReply, error) {
	user, err := targetUser(req, cmd, "remove from")
	if err != nil {
		return nil, err
	}
	if !s.gate.RemovePrivileged(user) {
		return &domain.CommandReply{Message: "User not in sudo list."}, nil
	}
	s.logger.Infow("sudo user removed", "user_id", user)
	return &domain.CommandReply{Message: "Removed from sudo users."}, nil
}

// targetUser takes the replied-to user, or a numeric id argument.
func targetUser(req domain.CommandRequest, cmd Command, verb string) (domain.UserID, error) {
	if req.ReplyTo != nil {
		return *req.ReplyTo, nil
	}
	if cmd.Args != "" {
		if id, err := domain.ParseUserID(cmd.Args); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: reply to a user or pass a user id to %s the sudo list", domain.ErrInvalidRequest, verb)
}

func playbackMessage(res *domain.PlaybackResult) string {
	if res.Outcome == domain.OutcomeQueued {
		return fmt.Sprintf("Added to queue at #%d.", res.Position)
	}
	return "Started streaming on the voice chat."
}

// ReplyForError renders a user facing message for a command error.
func ReplyForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoActiveCall):
		return "No active voice chat found."
	case errors.Is(err, domain.ErrResolution):
		return "Something went wrong resolving that, try another query."
	case errors.Is(err, domain.ErrQueueFull):
		return "The queue is full, try again later."
	case errors.Is(err, domain.ErrAccessDenied):
		return "You are not allowed to do that."
	case errors.Is(err, domain.ErrNothingPlaying):
		return "Nothing is streaming."
	case errors.Is(err, domain.ErrAlreadyPaused):
		return "Already paused."
	case errors.Is(err, domain.ErrAlreadyPlaying):
		return "Already streaming."
	case errors.Is(err, domain.ErrTransportUnavailable):
		return "Voice chat service is unavailable, try again later."
	case errors.Is(err, domain.ErrInvalidRequest):
		_, detail, found := strings.Cut(err.Error(), ": ")
		if found {
			return detail
		}
		return "Invalid request."
	default:
		return "Something went wrong."
	}
}
