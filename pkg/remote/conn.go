package remote

import (
	"github.com/nats-io/nats.go"
)

// Conn is the part of a NATS connection the bridge uses. *nats.Conn
// satisfies it through WrapNATSConn.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb func(subj string, data []byte)) (Subscription, error)
}

// Subscription is an active subject subscription.
type Subscription interface {
	Unsubscribe() error
}

// WrapNATSConn adapts a *nats.Conn to the Conn interface.
func WrapNATSConn(nc *nats.Conn) Conn {
	return &natsConnAdapter{nc: nc}
}

type natsConnAdapter struct {
	nc *nats.Conn
}

func (a *natsConnAdapter) Publish(subj string, data []byte) error {
	return a.nc.Publish(subj, data)
}

func (a *natsConnAdapter) Subscribe(subj string, cb func(subj string, data []byte)) (Subscription, error) {
	sub, err := a.nc.Subscribe(subj, func(msg *nats.Msg) {
		cb(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
