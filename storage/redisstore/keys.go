package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations implements auth.Revocations.
type Revocations struct {
	client redis.UniversalClient
	prefix string
}

func NewRevocations(client redis.UniversalClient, prefix string) *Revocations {
	return &Revocations{client: client, prefix: prefix + "revoked:"}
}

func (s *Revocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+jti, 1, ttl).Err()
}

func (s *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	return n > 0, err
}

// States implements auth.StateStore.
type States struct {
	client redis.UniversalClient
	prefix string
}

func NewStates(client redis.UniversalClient, prefix string) *States {
	return &States{client: client, prefix: prefix + "oauth_state:"}
}

func (s *States) Save(ctx context.Context, state string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+state, 1, ttl).Err()
}

// Consume deletes the state atomically with GETDEL.
func (s *States) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, s.prefix+state).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Tickets implements auth.TicketStore and invite.Redemptions.
type Tickets struct {
	client redis.UniversalClient
	prefix string
}

func NewTickets(client redis.UniversalClient, prefix string) *Tickets {
	return &Tickets{client: client, prefix: prefix + "reset_ticket:"}
}

// NewInviteRedemptions keeps redeemed invitation ids.
func NewInviteRedemptions(client redis.UniversalClient, prefix string) *Tickets {
	return &Tickets{client: client, prefix: prefix + "invite_used:"}
}

// Consume marks jti as used with SET NX. It returns false when it was used.
func (s *Tickets) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+jti, 1, max(ttl, time.Second)).Result()
}

func (s *Tickets) Release(ctx context.Context, jti string) error {
	return s.client.Del(ctx, s.prefix+jti).Err()
}
