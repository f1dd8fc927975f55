package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/domain"
	"github.com/aussiebroadwan/dcm/internal/dcm/metrics"
	"github.com/aussiebroadwan/dcm/internal/dcm/service"
	"github.com/aussiebroadwan/dcm/pkg/idx"
	"github.com/aussiebroadwan/dcm/pkg/slogx"
)

// Accounts is the subset of *service.AccountService the boundary calls.
type Accounts interface {
	Register(ctx context.Context, username, password, serialNumber string) error
	Authenticate(ctx context.Context, username, password string) (domain.UserSummary, error)
	SetModeSettings(ctx context.Context, username string, settings domain.Settings) error
	GetModeSettings(ctx context.Context, username string, mode domain.Mode) (domain.Settings, error)
	ExportParameterChanges(ctx context.Context, username string) (string, error)
	ExportLoginHistory(ctx context.Context, username string) (string, error)
}

var _ Accounts = (*service.AccountService)(nil)

// Boundary turns account operations into Responses. No error or panic from
// below ever escapes it.
type Boundary struct {
	Accounts Accounts

	// Metrics is optional.
	Metrics *metrics.Metrics
}

func (b *Boundary) RegisterUser(ctx context.Context, username, password, serialNumber string) Response {
	return b.call(ctx, ChannelRegisterUser, func(ctx context.Context) (Response, error) {
		if err := b.Accounts.Register(ctx, username, password, serialNumber); err != nil {
			return Response{}, err
		}
		return ok(), nil
	})
}

func (b *Boundary) LoginUser(ctx context.Context, username, password string) Response {
	return b.call(ctx, ChannelLoginUser, func(ctx context.Context) (Response, error) {
		user, err := b.Accounts.Authenticate(ctx, username, password)
		if err != nil {
			return Response{}, err
		}
		res := ok()
		res.User = &user
		return res, nil
	})
}

// SetUser decodes settings against the named mode and stores them.
func (b *Boundary) SetUser(ctx context.Context, username, mode string, settings json.RawMessage) Response {
	return b.call(ctx, ChannelSetUser, func(ctx context.Context) (Response, error) {
		m, err := domain.ParseMode(mode)
		if err != nil {
			return Response{}, err
		}
		s, err := domain.DecodeSettings(m, settings)
		if err != nil {
			return Response{}, err
		}
		if err := b.Accounts.SetModeSettings(ctx, username, s); err != nil {
			return Response{}, err
		}
		return ok(), nil
	})
}

func (b *Boundary) GetSettingsForMode(ctx context.Context, username, mode string) Response {
	return b.call(ctx, ChannelGetSettingsForMode, func(ctx context.Context) (Response, error) {
		s, err := b.Accounts.GetModeSettings(ctx, username, domain.Mode(mode))
		if err != nil {
			return Response{}, err
		}
		res := ok()
		res.Settings = s
		return res, nil
	})
}

func (b *Boundary) DownloadParameterLog(ctx context.Context, username string) Response {
	return b.call(ctx, ChannelDownloadParameterLog, func(ctx context.Context) (Response, error) {
		dir, err := b.Accounts.ExportParameterChanges(ctx, username)
		if err != nil {
			return Response{}, err
		}
		res := ok()
		res.Directory = dir
		return res, nil
	})
}

func (b *Boundary) DownloadLoginHistory(ctx context.Context, username string) Response {
	return b.call(ctx, ChannelDownloadLoginHistory, func(ctx context.Context) (Response, error) {
		dir, err := b.Accounts.ExportLoginHistory(ctx, username)
		if err != nil {
			return Response{}, err
		}
		res := ok()
		res.Directory = dir
		return res, nil
	})
}

// call runs fn and converts its outcome, including a panic, into a Response.
func (b *Boundary) call(
	ctx context.Context,
	channel Channel,
	fn func(context.Context) (Response, error),
) (res Response) {
	start := time.Now()
	ctx = withCallLogger(ctx, channel)
	l := slogx.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			l.Error("channel handler panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			res = fail(MsgInternal)
		}
		b.Metrics.ObserveChannel(metricLabel(channel), res.Success, time.Since(start))
	}()

	res, err := fn(ctx)
	if err == nil {
		res.Success = true
		return res
	}

	msg, expected := Message(err)
	if expected {
		l.Debug("channel failed", slog.String("reason", msg), slog.Any("error", err))
	} else {
		l.Error("channel failed", slog.Any("error", err))
	}
	return fail(msg)
}

// withCallLogger tags the context logger with the channel. Calls that did not
// come through the HTTP middleware get their own request id.
func withCallLogger(ctx context.Context, channel Channel) context.Context {
	if !slogx.HasLogger(ctx) {
		ctx = slogx.WithRequestID(ctx, idx.New().String())
	}
	return slogx.WithContext(ctx, slogx.FromContext(ctx).With(slog.String("channel", metricLabel(channel))))
}

// metricLabel keeps caller-chosen channel names out of logs and label sets.
func metricLabel(c Channel) string {
	if c.Known() {
		return string(c)
	}
	return "unknown"
}

// Invoke dispatches a channel by name with positional JSON arguments, the
// same shape the UI uses. Missing trailing arguments read as empty strings.
func (b *Boundary) Invoke(ctx context.Context, channel Channel, args []json.RawMessage) Response {
	switch channel {
	case ChannelRegisterUser:
		a, err := stringArgs(args, 3)
		if err != nil {
			return b.reject(ctx, channel, err)
		}
		return b.RegisterUser(ctx, a[0], a[1], a[2])

	case ChannelLoginUser:
		a, err := stringArgs(args, 2)
		if err != nil {
			return b.reject(ctx, channel, err)
		}
		return b.LoginUser(ctx, a[0], a[1])

	case ChannelSetUser:
		a, err := stringArgs(args, 2)
		if err != nil {
			return b.reject(ctx, channel, err)
		}
		var settings json.RawMessage
		if len(args) > 2 {
			settings = args[2]
		}
		return b.SetUser(ctx, a[0], a[1], settings)

	case ChannelGetSettingsForMode:
		a, err := stringArgs(args, 2)
		if err != nil {
			return b.reject(ctx, channel, err)
		}
		return b.GetSettingsForMode(ctx, a[0], a[1])

	case ChannelDownloadParameterLog:
		a, err := stringArgs(args, 1)
		if err != nil {
			return b.reject(ctx, channel, err)
		}
		return b.DownloadParameterLog(ctx, a[0])

	case ChannelDownloadLoginHistory:
		a, err := stringArgs(args, 1)
		if err != nil {
			return b.reject(ctx, channel, err)
		}
		return b.DownloadLoginHistory(ctx, a[0])

	default:
		return b.reject(ctx, channel, fmt.Errorf("%w: %q", ErrUnknownChannel, channel))
	}
}

func (b *Boundary) reject(ctx context.Context, channel Channel, err error) Response {
	return b.call(ctx, channel, func(context.Context) (Response, error) { return Response{}, err })
}

// stringArgs decodes the first n arguments as strings. Absent or null
// arguments become "".
func stringArgs(args []json.RawMessage, n int) ([]string, error) {
	out := make([]string, n)
	for i := 0; i < n && i < len(args); i++ {
		raw := args[i]
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, fmt.Errorf("%w: argument %d must be a string", service.ErrInvalidRequest, i)
		}
	}
	return out, nil
}
