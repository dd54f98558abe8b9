package redisx

import "time"

// Dedup change events in the changelog: dedup:{service}:{event_id}
const KeyDedup = "dedup:%s:%s"

var (
	TTLLock  = 10 * time.Second
	TTLDedup = 48 * time.Hour

	scanCount int64 = 10
)
