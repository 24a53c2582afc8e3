package chat

import (
	"encoding/json"
	"slices"
)

// Inbound control message kinds and outbound event types.
const (
	MessageUserDisabled           = "ERROR_USER_DISABLED"
	MessageNeedsRegistration      = "ERROR_NEEDS_REGISTRATION"
	MessageMaxConnectionsExceeded = "ERROR_MAX_CONNECTIONS_EXCEEDED"
	MessageConnectedUserInfo      = "CONNECTED_USER_INFO"
	MessageNameChange             = "NAME_CHANGE"
)

// ScopeModerator marks a moderator in a user's scopes.
const ScopeModerator = "MODERATOR"

// Identity is the viewer's chat identity.
type Identity struct {
	AccessToken string
	Username    string
	IsModerator bool
}

// User is the user object pushed by the server.
type User struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Scopes      []string `json:"scopes"`
}

// IsModerator reports whether the user carries the moderator scope.
func (u User) IsModerator() bool { return slices.Contains(u.Scopes, ScopeModerator) }

// Message is one inbound socket message. Only the fields used for control
// messages are decoded; Raw keeps the full payload.
type Message struct {
	Type string          `json:"type"`
	User *User           `json:"user,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

// NameChange is the outbound display-name change event.
type NameChange struct {
	Type    string `json:"type"`
	NewName string `json:"newName"`
}

func decodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	m.Raw = append(json.RawMessage(nil), data...)
	return m, nil
}
