package signal

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

const (
	codeBadPayload      = "bad_payload"
	codeReservedRoom    = "reserved_room"
	codeMeetingNotFound = "meeting_not_found"
	codeMeetingEnded    = "meeting_ended"
	codeMeetingFull     = "meeting_full"
	codeWrongPassword   = "wrong_password"
	codeRateLimited     = "rate_limited"
	codeInternal        = "internal_error"
)

type errorData struct {
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
}

// errorCode maps a failure to the code sent back to the requester.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrBadPayload):
		return codeBadPayload
	case errors.Is(err, domain.ErrReservedRoom):
		return codeReservedRoom
	case errors.Is(err, domain.ErrMeetingNotFound):
		return codeMeetingNotFound
	case errors.Is(err, domain.ErrMeetingEnded):
		return codeMeetingEnded
	case errors.Is(err, domain.ErrMeetingFull):
		return codeMeetingFull
	case errors.Is(err, domain.ErrWrongPassword):
		return codeWrongPassword
	default:
		return codeInternal
	}
}

// replyError tells the requester, and only the requester, why event failed.
func (ctl *SignalWSController) replyError(ctx context.Context, c *wsSignalConn, event string, err error) {
	code := errorCode(err)
	if code == codeInternal {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("internal error")
	} else {
		log.Info().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("request refused")
	}
	ctl.replyCode(ctx, c, event, code)
}

func (ctl *SignalWSController) replyCode(ctx context.Context, c *wsSignalConn, event, code string) {
	ctl.reply(ctx, c, core.EventError, errorData{Event: event, Error: code})
}

func (ctl *SignalWSController) reply(ctx context.Context, c *wsSignalConn, event string, data any) {
	if err := ctl.Orch.SendTo(ctx, c.id, event, data); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("type", event).Msg("reply")
	}
}

func (ctl *SignalWSController) handlePing(ctx context.Context, c *wsSignalConn) {
	ctl.reply(ctx, c, core.EventPong, nil)
}
