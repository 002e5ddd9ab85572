package repositories

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"chat-hub/internal/store"
)

var (
	ErrRoomInitFailed = errors.New("failed to initialize chat room")
	ErrInvalidMembers = errors.New("a room needs at least two distinct members")
)

// RoomRepository owns room membership: who belongs to which room.
type RoomRepository interface {
	InitializeRoom(ctx context.Context, memberIDs []string, name string) (string, error)
	IsMember(ctx context.Context, roomID string, userID string) (bool, error)
	GetMembers(ctx context.Context, roomID string) ([]string, error)
	ListRoomsForUser(ctx context.Context, userID string) ([]string, error)
	GetName(ctx context.Context, roomID string) (string, bool, error)
}

// RoomRepo is a store-backed implementation of RoomRepository.
type RoomRepo struct {
	store store.Store
	newID func() string
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(s store.Store) *RoomRepo {
	return &RoomRepo{store: s, newID: uuid.NewString}
}

// InitializeRoom returns the existing direct room for a pair of members, or
// creates a new room. Groups (more than two members) always get a new room.
func (r *RoomRepo) InitializeRoom(ctx context.Context, memberIDs []string, name string) (string, error) {
	members := uniqueMembers(memberIDs)
	if len(members) < 2 {
		return "", ErrInvalidMembers
	}

	if len(members) == 2 {
		return r.initializeDirectRoom(ctx, members[0], members[1])
	}

	roomID := r.newID()
	err := r.store.Exec(ctx, func(b store.Batch) {
		queueRoom(b, roomID, members, name)
	})
	if err != nil {
		r.rollback(ctx, roomID, members)
		return "", fmt.Errorf("%w: %w", ErrRoomInitFailed, err)
	}
	return roomID, nil
}

// initializeDirectRoom searches and creates under one watch on both members'
// room sets so two concurrent calls for the same pair agree on one room.
func (r *RoomRepo) initializeDirectRoom(ctx context.Context, a, b string) (string, error) {
	var (
		roomID  string
		created bool
	)
	err := r.store.Watch(ctx, func(tx store.Tx) error {
		created = false
		existing, err := findDirectRoom(ctx, tx, a, b)
		if err != nil {
			return err
		}
		if existing != "" {
			roomID = existing
			return nil
		}
		roomID = r.newID()
		created = true
		return tx.Exec(ctx, func(batch store.Batch) {
			queueRoom(batch, roomID, []string{a, b}, "")
		})
	}, UserRoomsKey(a), UserRoomsKey(b))
	if err != nil {
		if created {
			r.rollback(ctx, roomID, []string{a, b})
		}
		return "", fmt.Errorf("%w: %w", ErrRoomInitFailed, err)
	}
	return roomID, nil
}

// findDirectRoom intersects both members' rooms and keeps the one with exactly those two members.
func findDirectRoom(ctx context.Context, rd store.Reader, a, b string) (string, error) {
	shared, err := rd.SInter(ctx, UserRoomsKey(a), UserRoomsKey(b))
	if err != nil {
		return "", err
	}
	sort.Strings(shared)
	for _, roomID := range shared {
		members, err := rd.SMembers(ctx, RoomUsersKey(roomID))
		if err != nil {
			return "", err
		}
		if len(members) == 2 {
			return roomID, nil
		}
	}
	return "", nil
}

func queueRoom(b store.Batch, roomID string, members []string, name string) {
	b.SAdd(RoomUsersKey(roomID), members...)
	for _, memberID := range members {
		b.SAdd(UserRoomsKey(memberID), roomID)
	}
	if name != "" && len(members) > 2 {
		b.Set(RoomNameKey(roomID), name)
	}
}

// rollback removes whatever part of a failed room initialization landed.
func (r *RoomRepo) rollback(ctx context.Context, roomID string, members []string) {
	err := r.store.Exec(ctx, func(b store.Batch) {
		b.SRem(RoomUsersKey(roomID), members...)
		for _, memberID := range members {
			b.SRem(UserRoomsKey(memberID), roomID)
		}
		b.Del(RoomNameKey(roomID))
	})
	if err != nil {
		log.Printf("room rollback failed room_id=%s err=%v", roomID, err)
	}
}

// IsMember checks membership.
func (r *RoomRepo) IsMember(ctx context.Context, roomID string, userID string) (bool, error) {
	return r.store.SIsMember(ctx, RoomUsersKey(roomID), userID)
}

// GetMembers returns the sorted member ids of a room.
func (r *RoomRepo) GetMembers(ctx context.Context, roomID string) ([]string, error) {
	members, err := r.store.SMembers(ctx, RoomUsersKey(roomID))
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

// ListRoomsForUser returns the sorted room ids the user belongs to.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID string) ([]string, error) {
	rooms, err := r.store.SMembers(ctx, UserRoomsKey(userID))
	if err != nil {
		return nil, err
	}
	sort.Strings(rooms)
	return rooms, nil
}

// GetName returns the optional group display name.
func (r *RoomRepo) GetName(ctx context.Context, roomID string) (string, bool, error) {
	return r.store.Get(ctx, RoomNameKey(roomID))
}

func uniqueMembers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
