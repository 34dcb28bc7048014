// Package roster snapshots the logged-in account's contact book into the
// store: friends, groups with their members, and channels.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"wxbridge/internal/blob"
	"wxbridge/internal/domain"
	"wxbridge/internal/store"
	"wxbridge/internal/wx"
)

type Refresher struct {
	driver wx.Driver
	store  *store.Store
	blobs  blob.Store
}

func New(driver wx.Driver, st *store.Store, blobs blob.Store) *Refresher {
	return &Refresher{driver: driver, store: st, blobs: blobs}
}

// Refresh pulls the three roster categories in parallel. The legs do not
// coordinate: a failure in one leaves whatever the others persisted, and the
// joined error reports every leg that failed.
func (r *Refresher) Refresh(ctx context.Context, ownerPUID string) error {
	var wg sync.WaitGroup
	errs := make([]error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		errs[0] = r.refreshFriends(ctx, ownerPUID)
	}()
	go func() {
		defer wg.Done()
		errs[1] = r.refreshGroups(ctx, ownerPUID)
	}()
	go func() {
		defer wg.Done()
		errs[2] = r.refreshChannels(ctx, ownerPUID)
	}()
	wg.Wait()

	return errors.Join(errs...)
}

func (r *Refresher) refreshFriends(ctx context.Context, ownerPUID string) error {
	friends, err := r.driver.Friends(ctx)
	if err != nil {
		return fmt.Errorf("list friends: %w", err)
	}
	for _, peer := range friends {
		if _, err := r.store.Contacts().Ensure(ctx, peerContact(peer)); err != nil {
			return err
		}
		if err := r.store.Apps().AddFriend(ctx, ownerPUID, peer.PUID); err != nil {
			return err
		}
		r.fetchAvatar(ctx, peer.PUID, r.store.Contacts().SetAvatar)
	}
	slog.Info("friends refreshed", "owner", ownerPUID, "count", len(friends))
	return nil
}

func (r *Refresher) refreshGroups(ctx context.Context, ownerPUID string) error {
	rosters, err := r.driver.Groups(ctx)
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	for _, roster := range rosters {
		owner := ownerPUID
		group := &domain.Group{
			PUID:      roster.Group.PUID,
			Name:      roster.Group.Name,
			NickName:  roster.Group.NickName,
			UserName:  roster.Group.UserName,
			OwnerPUID: &owner,
		}
		if _, err := r.store.Groups().Ensure(ctx, group); err != nil {
			return err
		}
		for _, member := range roster.Members {
			row, err := r.store.Contacts().Ensure(ctx, peerContact(member))
			if err != nil {
				return err
			}
			if err := r.store.Groups().AddMember(ctx, roster.Group.PUID, row); err != nil {
				return err
			}
		}
		r.fetchAvatar(ctx, roster.Group.PUID, r.store.Groups().SetAvatar)
	}
	slog.Info("groups refreshed", "owner", ownerPUID, "count", len(rosters))
	return nil
}

func (r *Refresher) refreshChannels(ctx context.Context, ownerPUID string) error {
	channels, err := r.driver.Channels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	for _, peer := range channels {
		owner := ownerPUID
		channel := &domain.Channel{
			PUID:      peer.PUID,
			Name:      peer.Name,
			NickName:  peer.NickName,
			Signature: peer.Signature,
			Province:  peer.Province,
			City:      peer.City,
			OwnerPUID: &owner,
		}
		if _, err := r.store.Channels().Ensure(ctx, channel); err != nil {
			return err
		}
	}
	slog.Info("channels refreshed", "owner", ownerPUID, "count", len(channels))
	return nil
}

// fetchAvatar stores the profile image and records its blob name. Avatar
// problems never fail a refresh leg.
func (r *Refresher) fetchAvatar(ctx context.Context, puid string, set func(context.Context, string, string) error) {
	data, err := r.driver.Avatar(ctx, puid)
	if err != nil || len(data) == 0 {
		slog.Warn("avatar fetch failed", "puid", puid, "error", err)
		return
	}
	name := "avatar/" + puid + ".jpg"
	if err := r.blobs.Put(ctx, name, data); err != nil {
		slog.Warn("avatar write failed", "puid", puid, "error", err)
		return
	}
	if err := set(ctx, puid, name); err != nil {
		slog.Warn("avatar record failed", "puid", puid, "error", err)
	}
}

func peerContact(peer wx.Peer) *domain.Contact {
	return &domain.Contact{
		PUID:       peer.PUID,
		Name:       peer.Name,
		NickName:   peer.NickName,
		UserName:   peer.UserName,
		RemarkName: peer.RemarkName,
		Signature:  peer.Signature,
		Sex:        peer.Sex,
		Province:   peer.Province,
		City:       peer.City,
	}
}
