// Package storage archives raw provider callback payloads so a stuck or
// disputed payment can be reconciled against exactly what the provider
// sent. The archive is best-effort and never on the request's critical
// path.
package storage

import "context"

type Archiver interface {
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
