package wx

import (
	"context"

	"wxbridge/internal/apperr"
)

var errNoDriver = apperr.New(apperr.CodeFailedPrecondition, "no protocol driver configured")

// Unavailable is the Driver used when no protocol client is linked in. Login
// blocks until the context ends so the worker does not spin; everything else
// fails fast.
type Unavailable struct{}

func NewUnavailable() Unavailable { return Unavailable{} }

func (Unavailable) Login(ctx context.Context, _ LoginHooks) error {
	<-ctx.Done()
	return ctx.Err()
}

func (Unavailable) Self(context.Context) (Peer, error) { return Peer{}, errNoDriver }

func (Unavailable) Search(context.Context, string) (Peer, bool, error) {
	return Peer{}, false, errNoDriver
}

func (Unavailable) SendText(context.Context, string, string) (Inbound, error) {
	return nil, errNoDriver
}

func (Unavailable) SendImage(context.Context, string, string) (Inbound, error) {
	return nil, errNoDriver
}

func (Unavailable) SendVideo(context.Context, string, string) (Inbound, error) {
	return nil, errNoDriver
}

func (Unavailable) SendFile(context.Context, string, string) (Inbound, error) {
	return nil, errNoDriver
}

func (Unavailable) Friends(context.Context) ([]Peer, error)       { return nil, errNoDriver }
func (Unavailable) Groups(context.Context) ([]GroupRoster, error) { return nil, errNoDriver }
func (Unavailable) Channels(context.Context) ([]Peer, error)      { return nil, errNoDriver }
func (Unavailable) Avatar(context.Context, string) ([]byte, error) {
	return nil, errNoDriver
}
