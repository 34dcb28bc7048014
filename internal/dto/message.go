package dto

import "time"

// PeerView is the resolved, readable form of a message participant.
type PeerView struct {
	Kind     string `json:"kind"`
	PUID     string `json:"puid"`
	Name     string `json:"name"`
	NickName string `json:"nickName,omitempty"`
}

// MessageView is the normalized envelope plus its flattened payload, as
// persisted and as posted to forward webhooks.
type MessageView struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	CreateTime  time.Time `json:"create_time"`
	ReceiveTime time.Time `json:"receive_time"`
	IsAt        bool      `json:"is_at"`
	Member      *PeerView `json:"member,omitempty"`
	Sender      PeerView  `json:"sender"`
	Receiver    PeerView  `json:"receiver"`
	Content     any       `json:"content"`
}

type SendMessageRequest struct {
	Type string `json:"type"` // text, image, video, file
	PUID string `json:"puid"`
	Text string `json:"text,omitempty"`
	File string `json:"file,omitempty"` // path of the uploaded temp file
}
