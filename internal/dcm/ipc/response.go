package ipc

import (
	"errors"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/service"
)

// Response is the discriminated result of every channel: Success is true with
// the channel's data, or false with Message.
type Response struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message,omitempty"`
	User      *domain.UserSummary `json:"user,omitempty"`
	Settings  domain.Settings     `json:"settings,omitempty" swaggertype:"object"`
	Directory string              `json:"directory,omitempty"`
}

// Messages shown to the user. Anything not listed is reported as
// MsgInternal and logged.
const (
	MsgUserNotFound      = "User not found"
	MsgUserExists        = "User already exists"
	MsgCapacityExceeded  = "Maximum number of users reached"
	MsgIncorrectPassword = "Incorrect password"
	MsgUnknownMode       = "Unknown mode"
	MsgInvalidSettings   = "Invalid settings"
	MsgInvalidRequest    = "Invalid request"
	MsgUnknownChannel    = "Unknown channel"
	MsgInternal          = "Internal error"
)

var ErrUnknownChannel = errors.New("unknown channel")

var messages = []struct {
	err error
	msg string
}{
	{service.ErrUserNotFound, MsgUserNotFound},
	{service.ErrUserExists, MsgUserExists},
	{service.ErrCapacityExceeded, MsgCapacityExceeded},
	{service.ErrIncorrectPassword, MsgIncorrectPassword},
	{service.ErrUnknownMode, MsgUnknownMode},
	{service.ErrInvalidSettings, MsgInvalidSettings},
	{service.ErrInvalidRequest, MsgInvalidRequest},
	{ErrUnknownChannel, MsgUnknownChannel},
}

// Message maps err to the text shown to the user and reports whether err was
// an expected failure.
func Message(err error) (string, bool) {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg, true
		}
	}
	return MsgInternal, false
}

func ok() Response { return Response{Success: true} }

func fail(msg string) Response { return Response{Success: false, Message: msg} }
