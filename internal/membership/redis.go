package membership

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisOracle reads group membership from the Redis sets maintained by the
// group-management subsystem. Each group has a set of member identities at
// groups:<groupID>:members; a missing key reads as an empty set, so unknown
// groups naturally answer false.
type RedisOracle struct {
	client redis.UniversalClient
}

// NewRedisOracle wraps an existing Redis client. The caller owns the client's
// lifecycle.
func NewRedisOracle(client redis.UniversalClient) *RedisOracle {
	return &RedisOracle{client: client}
}

// IsMember reports whether identity is in the group's member set.
func (o *RedisOracle) IsMember(ctx context.Context, identity, groupID string) (bool, error) {
	member, err := o.client.SIsMember(ctx, memberSetKey(groupID), identity).Result()
	if err != nil {
		return false, fmt.Errorf("membership lookup for group %q: %w", groupID, err)
	}
	return member, nil
}

func memberSetKey(groupID string) string {
	return "groups:" + groupID + ":members"
}
