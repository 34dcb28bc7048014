// Package wx is the contract with the chat-protocol client. The bridge
// treats the protocol as an opaque driver exposing login, contact search,
// send and listing primitives; everything here is satisfied by the real
// client adapter in production and by fakes in tests.
package wx

import (
	"context"
	"time"

	"wxbridge/internal/domain"
)

// Peer identifies one side of a message: a user, group or broadcast channel,
// keyed by the protocol-assigned puid.
type Peer struct {
	Kind       domain.PeerKind
	PUID       string
	Name       string
	NickName   string
	UserName   string
	RemarkName string
	Signature  string
	Sex        int
	Province   string
	City       string
}

type Location struct {
	X       float64
	Y       float64
	Scale   int
	Label   string
	MapType int
	POIName string
	POIID   string
	URL     string
	Text    string
}

// Envelope is the common metadata every inbound message carries.
type Envelope struct {
	ID          int64
	Type        string
	CreateTime  time.Time
	ReceiveTime time.Time
	Sender      Peer
	Receiver    Peer
	IsAt        bool
	Member      *Peer // speaking member when a group is involved
}

// Payload is the raw, type-dependent fields of an inbound message. Only the
// fields relevant to the message's type are populated; the classifier picks
// what it needs.
type Payload struct {
	Text        string
	URL         string
	Location    Location
	FileName    string
	FileSize    string
	ImgWidth    int
	ImgHeight   int
	PlayLength  int
	VoiceLength int64
	RawContent  string // embedded structured blob (card xml etc.)
}

// Inbound is the adapter every inbound message must satisfy. The pipeline
// depends on this interface only, never on the raw protocol object.
type Inbound interface {
	Envelope() Envelope
	Payload() Payload
	// FetchBytes downloads the binary content of media messages.
	FetchBytes(ctx context.Context) ([]byte, error)
}

// LoginHooks carries the callbacks the driver invokes during a QR login.
// QR runs on the driver's worker for every status transition; returning an
// error aborts the login. LoggedIn fires once with the authenticated
// account, LoggedOut when the session drops.
type LoginHooks struct {
	QR        func(uuid, status, qrcode string) error
	LoggedIn  func(self Peer)
	LoggedOut func()
	// Message fires for every inbound message while the session is alive.
	Message func(msg Inbound)
}

// GroupRoster is a group with its member list, as reported by the driver.
type GroupRoster struct {
	Group   Peer
	Members []Peer
}

// Driver is the opaque protocol client.
type Driver interface {
	// Login runs the QR flow and blocks until the session ends or the
	// context is cancelled.
	Login(ctx context.Context, hooks LoginHooks) error

	Self(ctx context.Context) (Peer, error)
	// Search resolves a contact, group or channel by puid. The boolean is
	// false when nothing matches.
	Search(ctx context.Context, puid string) (Peer, bool, error)

	SendText(ctx context.Context, puid, text string) (Inbound, error)
	SendImage(ctx context.Context, puid, path string) (Inbound, error)
	SendVideo(ctx context.Context, puid, path string) (Inbound, error)
	SendFile(ctx context.Context, puid, path string) (Inbound, error)

	Friends(ctx context.Context) ([]Peer, error)
	Groups(ctx context.Context) ([]GroupRoster, error)
	Channels(ctx context.Context) ([]Peer, error)
	// Avatar fetches the profile image bytes for a contact or group.
	Avatar(ctx context.Context, puid string) ([]byte, error)
}
