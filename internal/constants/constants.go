package constants

import "time"

// Context keys
const (
	ContextKeyUserID = "user_id"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Transient store failures are retried this many times before surfacing
// as ErrStorageUnavailable.
const MaxStoreRetries = 3

// InvitationTTL is how long a workspace invitation stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour
