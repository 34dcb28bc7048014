package domain

import "github.com/google/uuid"

type AppID = uuid.UUID

// PeerKind tags the polymorphic sender/receiver reference on a message.
type PeerKind string

const (
	PeerUser    PeerKind = "user"
	PeerGroup   PeerKind = "group"
	PeerChannel PeerKind = "channel"
)

func (k PeerKind) Valid() bool {
	switch k {
	case PeerUser, PeerGroup, PeerChannel:
		return true
	}
	return false
}
