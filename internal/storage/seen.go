package storage

import (
	"context"
	"time"
)

// Seen markers let feed jobs skip entries that were already delivered, even
// across restarts. They reuse the dedup table with a namespaced key, so both
// drivers support them without schema changes.

func seenKey(ns, id string) string { return "seen:" + ns + ":" + id }

// MarkSeen records that item id in namespace ns was processed. The marker
// expires after ttl. A nil store is a no-op.
func MarkSeen(ctx context.Context, st Store, ns, id string, ttl time.Duration) error {
	if st == nil || id == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return st.PutDedup(ctx, seenKey(ns, id), time.Now().Add(ttl))
}

// WasSeen reports whether item id in namespace ns has an unexpired marker.
// A nil store reports false.
func WasSeen(ctx context.Context, st Store, ns, id string) (bool, error) {
	if st == nil || id == "" {
		return false, nil
	}
	until, ok, err := st.GetDedup(ctx, seenKey(ns, id))
	if err != nil || !ok {
		return false, err
	}
	return until.After(time.Now()), nil
}
