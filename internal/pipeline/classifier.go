package pipeline

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"wxbridge/internal/apperr"
	"wxbridge/internal/domain"
	"wxbridge/internal/wx"
)

// strategy turns a raw inbound message into its payload row. Binary
// strategies declare needsBytes; the pipeline fetches content before any
// write so a failed fetch persists nothing.
type strategy interface {
	needsBytes() bool
	// build returns the payload row and, for binary types, the blob name
	// the fetched bytes must be stored under.
	build(env wx.Envelope, p wx.Payload, data []byte) (payload any, blobName string, err error)
}

// Classifier maps a message's type tag to its strategy,
// case-insensitively.
type Classifier struct {
	strategies map[string]strategy
}

func NewClassifier() *Classifier {
	return &Classifier{strategies: map[string]strategy{
		"text":       textStrategy{},
		"note":       noteStrategy{},
		"sharing":    sharingStrategy{},
		"map":        mapStrategy{},
		"card":       cardStrategy{},
		"picture":    pictureStrategy{},
		"recording":  recordingStrategy{},
		"video":      videoStrategy{},
		"attachment": attachmentStrategy{},
	}}
}

func (c *Classifier) strategyFor(typeTag string) (strategy, error) {
	s, ok := c.strategies[strings.ToLower(typeTag)]
	if !ok {
		return nil, apperr.WithCause(apperr.ErrUnsupportedMessageType, fmt.Errorf("type %q", typeTag))
	}
	return s, nil
}

// blobName builds the deterministic storage name for a media message:
// category plus the protocol message id, keeping the original extension.
func blobName(category string, id int64, fileName string) string {
	return category + "/" + strconv.FormatInt(id, 10) + path.Ext(fileName)
}

type textStrategy struct{}

func (textStrategy) needsBytes() bool { return false }
func (textStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	return &domain.TextMessage{MessageID: env.ID, Text: p.Text}, "", nil
}

type noteStrategy struct{}

func (noteStrategy) needsBytes() bool { return false }
func (noteStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	return &domain.NoteMessage{MessageID: env.ID, Text: p.Text}, "", nil
}

type sharingStrategy struct{}

func (sharingStrategy) needsBytes() bool { return false }
func (sharingStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	return &domain.SharingMessage{MessageID: env.ID, URL: p.URL, Text: p.Text}, "", nil
}

type mapStrategy struct{}

func (mapStrategy) needsBytes() bool { return false }
func (mapStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	loc := p.Location
	return &domain.MapMessage{
		MessageID: env.ID,
		X:         loc.X,
		Y:         loc.Y,
		Scale:     loc.Scale,
		Label:     loc.Label,
		MapType:   loc.MapType,
		POIName:   loc.POIName,
		POIID:     loc.POIID,
		URL:       loc.URL,
		Text:      loc.Text,
	}, "", nil
}

// Card payloads arrive as an embedded attribute blob; fields are lifted out
// with per-attribute patterns.
var cardAttrRe = map[string]*regexp.Regexp{
	"username":      regexp.MustCompile(`username="(.*?)"`),
	"nickname":      regexp.MustCompile(`nickname="(.*?)"`),
	"alias":         regexp.MustCompile(`alias="(.*?)"`),
	"province":      regexp.MustCompile(`province="(.*?)"`),
	"city":          regexp.MustCompile(`city="(.*?)"`),
	"sign":          regexp.MustCompile(`sign="(.*?)"`),
	"sex":           regexp.MustCompile(`sex="(.*?)"`),
	"bigheadimgurl": regexp.MustCompile(`bigheadimgurl="(.*?)"`),
}

func cardAttr(raw, attr string) string {
	m := cardAttrRe[attr].FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

type cardStrategy struct{}

func (cardStrategy) needsBytes() bool { return false }
func (cardStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	sex, _ := strconv.Atoi(cardAttr(p.RawContent, "sex"))
	return &domain.CardMessage{
		MessageID: env.ID,
		Username:  cardAttr(p.RawContent, "username"),
		Nickname:  cardAttr(p.RawContent, "nickname"),
		Alias:     cardAttr(p.RawContent, "alias"),
		Province:  cardAttr(p.RawContent, "province"),
		City:      cardAttr(p.RawContent, "city"),
		Sign:      cardAttr(p.RawContent, "sign"),
		Sex:       sex,
		Avatar:    cardAttr(p.RawContent, "bigheadimgurl"),
	}, "", nil
}

type pictureStrategy struct{}

func (pictureStrategy) needsBytes() bool { return true }
func (pictureStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	name := blobName("image", env.ID, p.FileName)
	return &domain.PictureMessage{
		MessageID: env.ID,
		Image:     name,
		ImgHeight: p.ImgHeight,
		ImgWidth:  p.ImgWidth,
	}, name, nil
}

type recordingStrategy struct{}

func (recordingStrategy) needsBytes() bool { return true }
func (recordingStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	name := blobName("record", env.ID, p.FileName)
	return &domain.RecordingMessage{
		MessageID:   env.ID,
		VoiceLength: p.VoiceLength,
		Record:      name,
	}, name, nil
}

type videoStrategy struct{}

func (videoStrategy) needsBytes() bool { return true }
func (videoStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	name := blobName("video", env.ID, p.FileName)
	return &domain.VideoMessage{
		MessageID:  env.ID,
		PlayLength: p.PlayLength,
		Video:      name,
	}, name, nil
}

type attachmentStrategy struct{}

func (attachmentStrategy) needsBytes() bool { return true }
func (attachmentStrategy) build(env wx.Envelope, p wx.Payload, _ []byte) (any, string, error) {
	name := blobName("file", env.ID, p.FileName)
	return &domain.AttachmentMessage{
		MessageID: env.ID,
		FileSize:  p.FileSize,
		File:      name,
	}, name, nil
}
