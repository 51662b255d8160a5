package domain

import "errors"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrMeetingEnded    = errors.New("meeting ended")
	ErrMeetingFull     = errors.New("meeting full")
	ErrWrongPassword   = errors.New("wrong password")
	ErrBadPayload      = errors.New("bad payload")
)
