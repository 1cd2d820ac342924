package idgen

import (
	"github.com/google/uuid"
)

// ID prefixes for different records
const (
	PrefixCommand = "cmd_"
	PrefixRequest = "req_"
)

// NewCommand generates a journal entry ID with cmd_ prefix
func NewCommand() string {
	return PrefixCommand + uuid.New().String()
}

// NewRequest generates an HTTP request ID with req_ prefix
func NewRequest() string {
	return PrefixRequest + uuid.New().String()
}

// New generates a bare UUID, used for OAuth2 state values
func New() string {
	return uuid.New().String()
}
