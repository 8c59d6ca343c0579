package models

import "strings"

// KeyPrefix distinguishes API key generations
type KeyPrefix string

const (
	// KeyPrefixTemporary marks keys issued to ephemeral instances
	KeyPrefixTemporary KeyPrefix = "temp_"
	// KeyPrefixPermanent is reserved for keys that survive eviction
	KeyPrefixPermanent KeyPrefix = "key_"
)

// APIKeyHeader is the request header carrying an instance key
const APIKeyHeader = "x-api-key"

const (
	// DefaultItemMethod is used when an item does not name a method
	DefaultItemMethod = "GET"
	// DefaultItemStatus is used when an item does not name a status
	DefaultItemStatus = 200
	// MaxItemDelay caps the injected response delay in milliseconds
	MaxItemDelay = 30000
)

// HasKnownKeyPrefix reports whether key carries a prefix this server issues
func HasKnownKeyPrefix(key string) bool {
	return strings.HasPrefix(key, string(KeyPrefixTemporary)) ||
		strings.HasPrefix(key, string(KeyPrefixPermanent))
}
