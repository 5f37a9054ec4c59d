package backend

import (
	"context"

	"kopilka/internal/prefs"
	"kopilka/internal/remote"
)

// Backend bundles all data ports the application reads and writes.
type Backend interface {
	remote.OperationStore
	remote.WalletDirectory
	remote.CategoryDirectory
	remote.GoalStore
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance, its preference store and an
// optional cleanup function
type BackendResult struct {
	Backend Backend
	Prefs   prefs.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// REST specific
	RemoteBaseURL string
	RemoteToken   string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	RESTBackend   BackendType = "rest"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, RESTBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
