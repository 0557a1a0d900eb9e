package cache

import "time"

// BytesCache stores raw response payloads with a per-entry TTL. Provider
// clients treat it as best effort: a miss or an error falls through to a
// live fetch.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
