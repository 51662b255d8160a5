package orch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/domain"
)

// Signal relays an offer/answer/candidate/peer-ready message to the meeting
// room, excluding the sender.
//
// target is carried as metadata only. Receivers filter on it themselves;
// the relay never routes point-to-point and never keeps the payload. A sender
// that is not seated in the meeting is a benign miss.
func (o *Orchestrator) Signal(ctx context.Context, from domain.ConnID, meetingID domain.MeetingID, event string, target domain.ConnID, data json.RawMessage) error {
	return o.Do(ctx, func() {
		if _, ok := o.Meetings.Participant(meetingID, from); !ok {
			log.Debug().Str("module", "orch").Str("conn", string(from)).Str("meeting", string(meetingID)).Str("event", event).Msg("signal: not a participant")
			return
		}
		res := o.relay(from, domain.MeetingRoom(meetingID), meetingID, event, target, data)
		log.Debug().
			Str("module", "orch").
			Str("conn", string(from)).
			Str("meeting", string(meetingID)).
			Str("event", event).
			Str("target", string(target)).
			Int("sent_to", res.SendTo).
			Msg("signal relayed")
	})
}
