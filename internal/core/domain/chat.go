package domain

import "strconv"

type ChatID int64
type UserID int64

func (c ChatID) String() string { return strconv.FormatInt(int64(c), 10) }
func (u UserID) String() string { return strconv.FormatInt(int64(u), 10) }

// ParseChatID accepts the decimal form Telegram uses, including the
// negative ids of groups and channels.
func ParseChatID(s string) (ChatID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ChatID(id), nil
}

func ParseUserID(s string) (UserID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return UserID(id), nil
}
