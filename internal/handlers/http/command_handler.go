package http

import (
	"net/http"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/internal/infrastructure/middleware"
	apperrors "callplayer/pkg/errors"
	"callplayer/pkg/logger"
	"callplayer/pkg/validation"

	"github.com/gin-gonic/gin"
)

// CommandHandler exposes chat commands over HTTP for the chat gateway.
// Routes expect AuthMiddleware to have set the caller.
type CommandHandler struct {
	commands    ports.CommandExecutor
	coordinator ports.PlaybackCoordinator
	gate        ports.AccessGate
}

var _ ports.CommandHTTPHandler = (*CommandHandler)(nil)

func NewCommandHandler(
	commands ports.CommandExecutor,
	coordinator ports.PlaybackCoordinator,
	gate ports.AccessGate,
) *CommandHandler {
	return &CommandHandler{
		commands:    commands,
		coordinator: coordinator,
		gate:        gate,
	}
}

func (h *CommandHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/commands", h.HandleCommand)
	api.GET("/chats/:chat_id/queue", h.GetQueue)
	api.GET("/access", h.GetAccess)
}

type commandRequest struct {
	ChatID        int64              `json:"chat_id"`
	Text          string             `json:"text" binding:"required"`
	Private       bool               `json:"private"`
	ReplyToUserID *int64             `json:"reply_to_user_id"`
	ReplyMedia    *replyMediaRequest `json:"reply_media"`
}

// replyMediaRequest is the replied-to attachment, already uploaded by the
// gateway and reachable at URL.
type replyMediaRequest struct {
	Kind  string `json:"kind" binding:"required,oneof=audio voice video document"`
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

type streamView struct {
	Position    int       `json:"position"`
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	RequestedBy int64     `json:"requested_by"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

func newStreamViews(queue []*domain.StreamRequest) []streamView {
	views := make([]streamView, 0, len(queue))
	for i, req := range queue {
		views = append(views, streamView{
			Position:    i,
			ID:          req.ID,
			Type:        string(req.Type),
			Title:       req.Title,
			RequestedBy: int64(req.RequestedBy),
			EnqueuedAt:  req.EnqueuedAt,
		})
	}
	return views
}

func (h *CommandHandler) HandleCommand(c *gin.Context) {
	caller, ok := middleware.UserIDFrom(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("caller unknown"))
		return
	}

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateCommandText(req.Text); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}

	cmdReq := domain.CommandRequest{
		Caller:  caller,
		ChatID:  domain.ChatID(req.ChatID),
		Private: req.Private,
		Text:    req.Text,
	}
	if req.Private {
		// a private chat is the caller's own
		cmdReq.ChatID = domain.ChatID(caller)
	} else if err := validation.ValidateChatID(req.ChatID); err != nil {
		c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}
	if req.ReplyToUserID != nil {
		replyTo := domain.UserID(*req.ReplyToUserID)
		cmdReq.ReplyTo = &replyTo
	}
	if m := req.ReplyMedia; m != nil {
		if err := validation.ValidateURL(m.URL); err != nil {
			c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
		cmdReq.ReplyMedia = &domain.ReplyMedia{Kind: domain.MediaKind(m.Kind), URL: m.URL, Title: m.Title}
	}

	ctx := logger.WithChatID(c.Request.Context(), int64(cmdReq.ChatID))
	reply, err := h.commands.Execute(ctx, cmdReq)
	if err != nil {
		c.Error(err)
		return
	}

	body := gin.H{
		"command": reply.Command,
		"message": reply.Message,
	}
	if reply.Result != nil {
		body["outcome"] = reply.Result.Outcome
		body["position"] = reply.Result.Position
		if reply.Result.Request != nil {
			body["request_id"] = reply.Result.Request.ID
		}
	}
	if reply.Queue != nil {
		body["queue"] = newStreamViews(reply.Queue)
	}
	if reply.Mode != "" {
		body["mode"] = reply.Mode
	}
	c.JSON(http.StatusOK, body)
}

func (h *CommandHandler) GetQueue(c *gin.Context) {
	chatID, err := domain.ParseChatID(c.Param("chat_id"))
	if err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid chat_id"))
		return
	}

	queue := h.coordinator.Queue(chatID)
	c.JSON(http.StatusOK, gin.H{
		"chat_id": int64(chatID),
		"queue":   newStreamViews(queue),
	})
}

// GetAccess reports the access mode and privileged users to sudo users.
func (h *CommandHandler) GetAccess(c *gin.Context) {
	caller, ok := middleware.UserIDFrom(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("caller unknown"))
		return
	}
	if !h.gate.RoleOf(caller).AtLeast(domain.RoleSudo) {
		c.Error(domain.ErrAccessDenied)
		return
	}

	privileged := h.gate.Privileged()
	ids := make([]int64, 0, len(privileged))
	for _, id := range privileged {
		ids = append(ids, int64(id))
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":       h.gate.Mode(),
		"privileged": ids,
		"role":       h.gate.RoleOf(caller),
	})
}
