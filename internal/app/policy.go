package app

import "github.com/dkeye/Meet/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	CloseConnection
)

// Policy decides what happens to a handle after a failed delivery. The
// registry has already pruned it by then.
type Policy interface {
	OnDeliveryFailure(dropped core.Recipient) BackpressureAction
}

// SimplePolicy closes the dropped socket so its read loop ends and the
// participant goes through the normal disconnect path.
type SimplePolicy struct{}

func (SimplePolicy) OnDeliveryFailure(core.Recipient) BackpressureAction {
	return CloseConnection
}
