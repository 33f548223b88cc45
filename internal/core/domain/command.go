package domain

// CommandRequest is one chat message addressed to the player.
type CommandRequest struct {
	Caller  UserID
	ChatID  ChatID
	Private bool
	Text    string
	// ReplyTo is the author of the message the command replied to, if any.
	ReplyTo *UserID
	// ReplyMedia is the file attached to the replied-to message, if any.
	ReplyMedia *ReplyMedia
}

type MediaKind string

const (
	MediaAudio    MediaKind = "audio"
	MediaVoice    MediaKind = "voice"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// StreamType maps an attachment to the stream it plays as: sound files play
// as audio, everything else as video.
func (k MediaKind) StreamType() (StreamType, bool) {
	switch k {
	case MediaAudio, MediaVoice:
		return StreamAudio, true
	case MediaVideo, MediaDocument:
		return StreamVideo, true
	}
	return "", false
}

// ReplyMedia is a chat attachment the bridge has made reachable by URL.
type ReplyMedia struct {
	Kind  MediaKind
	URL   string
	Title string
}

type CommandReply struct {
	Command string
	Message string
	Result  *PlaybackResult
	Queue   []*StreamRequest
	Mode    AccessMode
}
