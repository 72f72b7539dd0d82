package client

import "context"

// StorageClient defines the interface for persisting circuit sources and
// result payloads under opaque keys.
type StorageClient interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
