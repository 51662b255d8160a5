package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

type whoAmIData struct {
	ConnID domain.ConnID `json:"connId"`
	ID     domain.UserID `json:"id"`
	Name   string        `json:"name"`
	Email  string        `json:"email"`
}

func (ctl *SignalWSController) handleWhoAmI(ctx context.Context, c *wsSignalConn) {
	ctl.reply(ctx, c, core.EventWhoAmI, whoAmIData{
		ConnID: c.id,
		ID:     c.principal.ID,
		Name:   c.principal.Name,
		Email:  c.principal.Email,
	})
}

func (ctl *SignalWSController) handleOnlineUsers(ctx context.Context, c *wsSignalConn) {
	if err := ctl.Orch.SendOnlineUsers(ctx, c.id); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("online users")
	}
}
