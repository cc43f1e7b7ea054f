// Package domain contains core concepts of the chat system.
// This file defines Identity and connection handles.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ConnID identifies one live connection. Many connections may share an Identity.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// Identity is the verified user behind a connection.
// It is immutable for the lifetime of a connection session.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Valid rejects ids that could not be told apart inside a private conversation id.
func (i Identity) Valid() bool {
	return i.ID != "" && !strings.Contains(i.ID, PairSeparator)
}

// DisplayName falls back to the id when no username was provided by the issuer.
func (i Identity) DisplayName() string {
	if i.Username == "" {
		return i.ID
	}
	return i.Username
}
