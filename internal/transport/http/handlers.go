// Package http holds the REST handlers that sit next to the WebSocket
// endpoint: session login, read-only views of the live core, meeting
// administration and chat history.
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/domain"
)

const (
	PrincipalKey = "principal"
	SessionToken = "token"
)

type API struct {
	Orch     *orch.Orchestrator
	Auth     app.Authenticator
	Meetings app.MeetingStore
	Admin    app.MeetingAdmin
	Chat     app.ChatStore
	DB       app.Pinger
	ICE      webrtc.Configuration
}

type SessionRequest struct {
	Token string `json:"token"`
}

type CreateMeetingRequest struct {
	Title           string `json:"title"`
	Password        string `json:"password"`
	MaxParticipants int    `json:"maxParticipants"`
}

// CurrentPrincipal returns the identity the auth middleware attached.
func CurrentPrincipal(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}

// Healthz reports 503 while the row store is unreachable.
func (a *API) Healthz(c *gin.Context) {
	if a.DB != nil {
		if err := a.DB.Ping(c.Request.Context()); err != nil {
			log.Error().Err(err).Str("module", "transport.http").Msg("health check")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateSession verifies a token and keeps it in the cookie session, so
// browsers can open the socket without putting the token in the URL.
func (a *API) CreateSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid token"})
		return
	}
	p, err := a.Auth.Verify(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(SessionToken, req.Token)
	if err := s.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteSession logs out: the session's token is revoked, not just forgotten.
func (a *API) DeleteSession(c *gin.Context) {
	s := sessions.Default(c)
	if token, ok := s.Get(SessionToken).(string); ok && token != "" {
		if err := a.Auth.RevokeToken(c.Request.Context(), token); err != nil {
			writeError(c, err)
			return
		}
	}
	s.Clear()
	if err := s.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) Me(c *gin.Context) {
	p, _ := CurrentPrincipal(c)
	c.JSON(http.StatusOK, p)
}

func (a *API) Presence(c *gin.Context) {
	users, err := a.Orch.OnlineUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (a *API) Rooms(c *gin.Context) {
	rooms, err := a.Orch.RoomList(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (a *API) LiveMeetings(c *gin.Context) {
	meetings, err := a.Orch.MeetingList(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": meetings})
}

// Participants is the live roster; unknown meetings give an empty list.
func (a *API) Participants(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	roster, err := a.Orch.Roster(c.Request.Context(), id, "")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetingId": id, "participants": roster})
}

func (a *API) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": a.ICE.ICEServers})
}

func (a *API) CreateMeeting(c *gin.Context) {
	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MaxParticipants < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting"})
		return
	}
	p, _ := CurrentPrincipal(c)
	hash, err := app.HashPassword(req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	m, err := a.Admin.CreateMeeting(c.Request.Context(), domain.Meeting{
		Title:           req.Title,
		HostID:          p.ID,
		PasswordHash:    hash,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("module", "transport.http").Str("meeting", string(m.ID)).Str("host", string(p.ID)).Msg("meeting created")
	c.JSON(http.StatusCreated, m)
}

func (a *API) Meeting(c *gin.Context) {
	m, err := a.Meetings.Meeting(c.Request.Context(), domain.MeetingID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// hostOnly loads the meeting and answers 403 unless the caller hosts it.
func (a *API) hostOnly(c *gin.Context, id domain.MeetingID) (domain.Meeting, bool) {
	m, err := a.Meetings.Meeting(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return domain.Meeting{}, false
	}
	if p, _ := CurrentPrincipal(c); p.ID != m.HostID {
		c.JSON(http.StatusForbidden, gin.H{"error": "host only"})
		return domain.Meeting{}, false
	}
	return m, true
}

// EndMeeting is host-only. Live participants stay connected; new joins fail.
func (a *API) EndMeeting(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	if _, ok := a.hostOnly(c, id); !ok {
		return
	}
	if err := a.Admin.EndMeeting(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) ConversationHistory(c *gin.Context) {
	a.history(c, domain.ConversationRoom(c.Param("id")))
}

// Attendance is the durable join/leave log. Host only.
func (a *API) Attendance(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	if _, ok := a.hostOnly(c, id); !ok {
		return
	}
	rows, err := a.Admin.Attendance(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetingId": id, "attendance": rows})
}

// MeetingHistory is open to the host and to anyone in the attendance log.
func (a *API) MeetingHistory(c *gin.Context) {
	id := domain.MeetingID(c.Param("id"))
	m, err := a.Meetings.Meeting(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	p, _ := CurrentPrincipal(c)
	if p.ID != m.HostID {
		ok, err := a.attended(c, id, p.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		}
	}
	a.history(c, domain.MeetingRoom(id))
}

func (a *API) attended(c *gin.Context, id domain.MeetingID, uid domain.UserID) (bool, error) {
	rows, err := a.Admin.Attendance(c.Request.Context(), id)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.UserID == uid {
			return true, nil
		}
	}
	return false, nil
}

func (a *API) history(c *gin.Context, room domain.RoomName) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	msgs, err := a.Chat.History(c.Request.Context(), room, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "messages": msgs})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, domain.ErrMeetingNotFound), errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrBadPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
	default:
		log.Error().Err(err).Str("module", "transport.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
