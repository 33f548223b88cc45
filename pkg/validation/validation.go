package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxMessageLength is the longest text a chat message can carry.
	MaxMessageLength = 4096
	// MaxQueryLength bounds search queries handed to the resolver.
	MaxQueryLength = 512
)

// UsernameRegex matches chat account usernames without the leading @.
var UsernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{4,31}$`)

// ValidateCommandText validates the raw text of a chat command
func ValidateCommandText(text string) error {
	if err := ValidateNonEmptyString(text, "text"); err != nil {
		return err
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("text is not valid UTF-8")
	}
	return ValidateStringLength(text, 1, MaxMessageLength, "text")
}

// ValidateQuery validates a media search query or link
func ValidateQuery(query string) error {
	query = strings.TrimSpace(query)
	if err := ValidateNonEmptyString(query, "query"); err != nil {
		return err
	}
	if err := ValidateStringLength(query, 1, MaxQueryLength, "query"); err != nil {
		return err
	}
	for _, r := range query {
		if unicode.IsControl(r) {
			return fmt.Errorf("query contains control characters")
		}
	}
	return nil
}

// ValidateChatID validates a chat identifier. Zero is never a real chat.
func ValidateChatID(id int64) error {
	if id == 0 {
		return fmt.Errorf("chat_id is required")
	}
	return nil
}

// ValidateUserID validates a chat account identifier.
func ValidateUserID(id int64) error {
	if id <= 0 {
		return fmt.Errorf("user id must be positive")
	}
	return nil
}

// ValidateUsername validates a username. Empty is allowed: not every
// account has one.
func ValidateUsername(username string) error {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("invalid username %q (5-32 letters, digits or _)", username)
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
