package app

import (
	"fmt"

	"github.com/dkeye/Collab/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(conn core.Conn) BackpressureAction
}

// SimplePolicy kicks slow consumers; closing the transport runs the
// ordinary disconnect cleanup.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.Conn) BackpressureAction {
	return KickMember
}

// LenientPolicy drops frames for slow consumers and keeps them connected.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(core.Conn) BackpressureAction {
	return DropFrame
}

// PolicyFor maps the backpressure setting to a Policy: "kick" (the default)
// or "drop".
func PolicyFor(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return LenientPolicy{}, nil
	}
	return nil, fmt.Errorf("unknown backpressure policy %q", name)
}
