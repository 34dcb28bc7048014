package domain

import "time"

// Message is the envelope shared by every message type. Exactly one payload
// row exists per envelope, in the table matching Type.
type Message struct {
	ID          int64     `gorm:"primaryKey" json:"id"` // protocol-assigned
	Type        string    `gorm:"type:text;not null;index" json:"type"`
	CreateTime  time.Time `gorm:"not null" json:"createTime"`
	ReceiveTime time.Time `gorm:"not null" json:"receiveTime"`
	IsAt        bool      `gorm:"not null;default:false" json:"isAt"`
	MemberPUID  *string   `gorm:"column:member_puid;type:text" json:"memberPuid"` // speaking group member, if any
	OwnerPUID   *string   `gorm:"column:owner_puid;type:text;index" json:"ownerPuid"`

	SenderKind   PeerKind `gorm:"type:text;not null" json:"senderKind"`
	SenderPUID   string   `gorm:"column:sender_puid;type:text;not null;index" json:"senderPuid"`
	ReceiverKind PeerKind `gorm:"type:text;not null" json:"receiverKind"`
	ReceiverPUID string   `gorm:"column:receiver_puid;type:text;not null;index" json:"receiverPuid"`
}

func (Message) TableName() string { return "messages" }

type TextMessage struct {
	MessageID int64  `gorm:"primaryKey" json:"messageId"`
	Text      string `gorm:"type:text" json:"text"`
}

func (TextMessage) TableName() string { return "text_messages" }

type MapMessage struct {
	MessageID int64   `gorm:"primaryKey" json:"messageId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Scale     int     `json:"scale"`
	Label     string  `gorm:"type:text" json:"label"`
	MapType   int     `json:"mapType"`
	POIName   string  `gorm:"type:text" json:"poiName"`
	POIID     string  `gorm:"type:text" json:"poiId"`
	URL       string  `gorm:"type:text" json:"url"`
	Text      string  `gorm:"type:text" json:"text"`
}

func (MapMessage) TableName() string { return "map_messages" }

type SharingMessage struct {
	MessageID int64  `gorm:"primaryKey" json:"messageId"`
	URL       string `gorm:"type:text" json:"url"`
	Text      string `gorm:"type:text" json:"text"`
}

func (SharingMessage) TableName() string { return "sharing_messages" }

type PictureMessage struct {
	MessageID int64  `gorm:"primaryKey" json:"messageId"`
	Image     string `gorm:"type:text" json:"image"` // blob name
	ImgHeight int    `json:"imgHeight"`
	ImgWidth  int    `json:"imgWidth"`
}

func (PictureMessage) TableName() string { return "picture_messages" }

type RecordingMessage struct {
	MessageID   int64  `gorm:"primaryKey" json:"messageId"`
	VoiceLength int64  `json:"voiceLength"`
	Record      string `gorm:"type:text" json:"record"` // blob name
}

func (RecordingMessage) TableName() string { return "recording_messages" }

type AttachmentMessage struct {
	MessageID int64  `gorm:"primaryKey" json:"messageId"`
	FileSize  string `gorm:"type:text" json:"fileSize"`
	File      string `gorm:"type:text" json:"file"` // blob name
}

func (AttachmentMessage) TableName() string { return "attachment_messages" }

type VideoMessage struct {
	MessageID  int64  `gorm:"primaryKey" json:"messageId"`
	PlayLength int    `json:"playLength"`
	Video      string `gorm:"type:text" json:"video"` // blob name
}

func (VideoMessage) TableName() string { return "video_messages" }

type CardMessage struct {
	MessageID int64  `gorm:"primaryKey" json:"messageId"`
	Username  string `gorm:"type:text" json:"username"`
	Nickname  string `gorm:"type:text" json:"nickname"`
	Alias     string `gorm:"type:text" json:"alias"`
	Province  string `gorm:"type:text" json:"province"`
	City      string `gorm:"type:text" json:"city"`
	Sign      string `gorm:"type:text" json:"sign"`
	Sex       int    `json:"sex"`
	Avatar    string `gorm:"type:text" json:"avatar"` // url from the embedded card blob
}

func (CardMessage) TableName() string { return "card_messages" }

type NoteMessage struct {
	MessageID int64  `gorm:"primaryKey" json:"messageId"`
	Text      string `gorm:"type:text" json:"text"`
}

func (NoteMessage) TableName() string { return "note_messages" }
