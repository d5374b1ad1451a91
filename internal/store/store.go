// Package store persists resolved coordinates and search-run history, with
// sqlite and postgres backends.
package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/nearby-cli/pkg/here"
)

// Run is one recorded search invocation.
type Run struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Terms     []string  `json:"terms"`
	Radius    int       `json:"radius"`
	Features  int       `json:"features"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence interface for the geocode cache and run history.
type Store interface {
	// Geocode cache
	GetPosition(ctx context.Context, address string) (*here.Position, bool, error)
	PutPosition(ctx context.Context, address string, pos here.Position) error
	PurgeExpired(ctx context.Context) (int64, error)

	// Run history
	RecordRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// cacheKey returns the sha256 hex of the normalized address. Addresses are
// NFC-normalized so composed and decomposed spellings of the same accented
// text share a cache entry.
func cacheKey(address string) string {
	normalized := norm.NFC.String(strings.ToLower(strings.TrimSpace(address)))
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}
