// Package membership answers group-membership queries against the group
// management subsystem. The relay never caches answers beyond a single join
// check: membership can change at any time, and revocations arrive through
// the eviction endpoint rather than through this package.
package membership

import "context"

// Oracle reports whether a user currently belongs to a group. An invalid or
// unknown groupID answers false rather than an error; errors are reserved
// for infrastructure failures reaching the membership store.
type Oracle interface {
	IsMember(ctx context.Context, identity, groupID string) (bool, error)
}
