package kv

import (
	"context"
	"errors"
	"time"
)

// Namespace identifies one logical keyspace within the store.
type Namespace string

const (
	// Requests holds primary rights-request records keyed by
	// "<ownerEmail>:<requestId>".
	Requests Namespace = "requests"
	// Reviews holds review pointers keyed by "unassigned:<requestId>"
	// or "<reviewerEmail>:<requestId>".
	Reviews Namespace = "reviews"
	// Messages holds per-user notifications keyed by
	// "<ownerEmail>:<notificationId>".
	Messages Namespace = "messages"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// PutOptions carries optional write parameters.
type PutOptions struct {
	Metadata      map[string]string
	ExpirationTTL time.Duration
}

// ListOptions narrows a List call.
type ListOptions struct {
	Prefix string
	Limit  int
}

// Entry is one key/value pair returned by List.
type Entry struct {
	Key   string
	Value string
}

// Store abstracts a namespaced, eventually-consistent string-keyed store.
// Writes across multiple keys are independent; callers must tolerate
// partially-applied sequences and skip unresolvable joins.
type Store interface {
	Get(ctx context.Context, ns Namespace, key string) (string, error)
	Put(ctx context.Context, ns Namespace, key, value string, opts *PutOptions) error
	Delete(ctx context.Context, ns Namespace, key string) error
	List(ctx context.Context, ns Namespace, opts ListOptions) ([]Entry, error)
}
