// Package pipeline ingests inbound messages: classify, resolve
// participants, persist envelope plus payload, and hand the normalized
// result to the caller for optional forwarding.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"wxbridge/internal/blob"
	"wxbridge/internal/domain"
	"wxbridge/internal/dto"
	"wxbridge/internal/observability/metrics"
	"wxbridge/internal/store"
	"wxbridge/internal/wx"
)

type Pipeline struct {
	store      *store.Store
	blobs      blob.Store
	classifier *Classifier
}

func New(st *store.Store, blobs blob.Store) *Pipeline {
	return &Pipeline{store: st, blobs: blobs, classifier: NewClassifier()}
}

// Ingest runs one inbound message through classification and persistence.
// An unsupported type aborts before any write; a failed content fetch for
// media types likewise persists nothing. Envelope, payload and blob commit
// as one unit: a blob write failure rolls the rows back rather than leaving
// an envelope that references missing content.
func (pl *Pipeline) Ingest(ctx context.Context, app *domain.App, msg wx.Inbound) (*dto.MessageView, error) {
	env := msg.Envelope()
	typeTag := strings.ToLower(env.Type)
	result := "success"
	defer func() {
		metrics.MessagesIngestedTotal.WithLabelValues(typeTag, result).Inc()
	}()

	strat, err := pl.classifier.strategyFor(env.Type)
	if err != nil {
		result = "unsupported"
		return nil, err
	}

	var data []byte
	if strat.needsBytes() {
		data, err = msg.FetchBytes(ctx)
		if err != nil {
			result = "fetch_failure"
			return nil, fmt.Errorf("fetch message %d content: %w", env.ID, err)
		}
	}

	payload, name, err := strat.build(env, msg.Payload(), data)
	if err != nil {
		result = "failure"
		return nil, err
	}

	sender, err := pl.resolvePeer(ctx, env.Sender)
	if err != nil {
		result = "failure"
		return nil, err
	}
	receiver, err := pl.resolvePeer(ctx, env.Receiver)
	if err != nil {
		result = "failure"
		return nil, err
	}
	var member *dto.PeerView
	if env.Member != nil {
		member, err = pl.resolvePeer(ctx, *env.Member)
		if err != nil {
			result = "failure"
			return nil, err
		}
	}

	row := &domain.Message{
		ID:           env.ID,
		Type:         env.Type,
		CreateTime:   env.CreateTime,
		ReceiveTime:  env.ReceiveTime,
		IsAt:         env.IsAt,
		OwnerPUID:    app.BoundPUID,
		SenderKind:   env.Sender.Kind,
		SenderPUID:   env.Sender.PUID,
		ReceiverKind: env.Receiver.Kind,
		ReceiverPUID: env.Receiver.PUID,
	}
	if env.Member != nil {
		puid := env.Member.PUID
		row.MemberPUID = &puid
	}

	err = pl.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.Messages().CreateEnvelope(ctx, row); err != nil {
			return err
		}
		if err := tx.Messages().CreatePayload(ctx, payload); err != nil {
			return err
		}
		if name != "" {
			if err := pl.blobs.Put(ctx, name, data); err != nil {
				return fmt.Errorf("write blob %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		result = "failure"
		return nil, err
	}

	slog.Info("message ingested", "id", env.ID, "type", typeTag, "sender", env.Sender.PUID)
	return &dto.MessageView{
		ID:          env.ID,
		Type:        env.Type,
		CreateTime:  env.CreateTime,
		ReceiveTime: env.ReceiveTime,
		IsAt:        env.IsAt,
		Member:      member,
		Sender:      *sender,
		Receiver:    *receiver,
		Content:     payload,
	}, nil
}

// resolvePeer maps a protocol participant to its persisted row, creating it
// lazily on first observation.
func (pl *Pipeline) resolvePeer(ctx context.Context, peer wx.Peer) (*dto.PeerView, error) {
	switch peer.Kind {
	case domain.PeerUser:
		contact, err := pl.store.Contacts().Ensure(ctx, &domain.Contact{
			PUID:       peer.PUID,
			Name:       peer.Name,
			NickName:   peer.NickName,
			UserName:   peer.UserName,
			RemarkName: peer.RemarkName,
			Signature:  peer.Signature,
			Sex:        peer.Sex,
			Province:   peer.Province,
			City:       peer.City,
		})
		if err != nil {
			return nil, err
		}
		return &dto.PeerView{Kind: string(peer.Kind), PUID: contact.PUID, Name: contact.Name, NickName: contact.NickName}, nil
	case domain.PeerGroup:
		group, err := pl.store.Groups().Ensure(ctx, &domain.Group{
			PUID:     peer.PUID,
			Name:     peer.Name,
			NickName: peer.NickName,
			UserName: peer.UserName,
		})
		if err != nil {
			return nil, err
		}
		return &dto.PeerView{Kind: string(peer.Kind), PUID: group.PUID, Name: group.Name, NickName: group.NickName}, nil
	case domain.PeerChannel:
		channel, err := pl.store.Channels().Ensure(ctx, &domain.Channel{
			PUID:      peer.PUID,
			Name:      peer.Name,
			NickName:  peer.NickName,
			Signature: peer.Signature,
			Province:  peer.Province,
			City:      peer.City,
		})
		if err != nil {
			return nil, err
		}
		return &dto.PeerView{Kind: string(peer.Kind), PUID: channel.PUID, Name: channel.Name, NickName: channel.NickName}, nil
	default:
		return nil, fmt.Errorf("unknown peer kind %q", peer.Kind)
	}
}

// View rebuilds the normalized representation of an already persisted
// message, for the read endpoints.
func (pl *Pipeline) View(ctx context.Context, msg *domain.Message) (*dto.MessageView, error) {
	payload, err := pl.loadPayload(ctx, msg)
	if err != nil {
		return nil, err
	}
	sender, err := pl.viewPeer(ctx, msg.SenderKind, msg.SenderPUID)
	if err != nil {
		return nil, err
	}
	receiver, err := pl.viewPeer(ctx, msg.ReceiverKind, msg.ReceiverPUID)
	if err != nil {
		return nil, err
	}
	view := &dto.MessageView{
		ID:          msg.ID,
		Type:        msg.Type,
		CreateTime:  msg.CreateTime,
		ReceiveTime: msg.ReceiveTime,
		IsAt:        msg.IsAt,
		Sender:      *sender,
		Receiver:    *receiver,
		Content:     payload,
	}
	if msg.MemberPUID != nil {
		member, err := pl.viewPeer(ctx, domain.PeerUser, *msg.MemberPUID)
		if err == nil {
			view.Member = member
		}
	}
	return view, nil
}

func (pl *Pipeline) viewPeer(ctx context.Context, kind domain.PeerKind, puid string) (*dto.PeerView, error) {
	view := &dto.PeerView{Kind: string(kind), PUID: puid}
	switch kind {
	case domain.PeerUser:
		if contact, err := pl.store.Contacts().Get(ctx, puid); err == nil {
			view.Name, view.NickName = contact.Name, contact.NickName
		}
	case domain.PeerGroup:
		if group, err := pl.store.Groups().Get(ctx, puid); err == nil {
			view.Name, view.NickName = group.Name, group.NickName
		}
	}
	return view, nil
}

func (pl *Pipeline) loadPayload(ctx context.Context, msg *domain.Message) (any, error) {
	var payload any
	switch strings.ToLower(msg.Type) {
	case "text":
		payload = &domain.TextMessage{}
	case "note":
		payload = &domain.NoteMessage{}
	case "sharing":
		payload = &domain.SharingMessage{}
	case "map":
		payload = &domain.MapMessage{}
	case "card":
		payload = &domain.CardMessage{}
	case "picture":
		payload = &domain.PictureMessage{}
	case "recording":
		payload = &domain.RecordingMessage{}
	case "video":
		payload = &domain.VideoMessage{}
	case "attachment":
		payload = &domain.AttachmentMessage{}
	default:
		return nil, fmt.Errorf("no payload table for type %q", msg.Type)
	}
	if err := pl.store.Messages().GetPayload(ctx, msg.ID, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
