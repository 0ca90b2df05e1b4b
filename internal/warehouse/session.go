package warehouse

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Session is the single warehouse connection owned by one pipeline run.
//
// Statements run strictly one at a time. Exec commits each statement on its
// own so that a failure part-way through a batch leaves the earlier
// statements applied.
type Session interface {
	Dialect() Dialect

	// Exec runs one statement in its own transaction and returns the number
	// of rows affected (-1 when the engine does not report it).
	Exec(ctx context.Context, sql string) (int64, error)

	// CopyRows bulk-inserts rows into table in a single transaction. Either
	// every row lands or none do.
	CopyRows(ctx context.Context, table string, columns []string, src RowSource) (int64, error)

	// Count returns select count(*) for table.
	Count(ctx context.Context, table string) (int64, error)

	// Close releases the connection. Calling it more than once is a no-op.
	Close(ctx context.Context) error
}

// BatchSizer is implemented by sessions whose CopyRows falls back to
// multi-row INSERTs.
type BatchSizer interface {
	SetBatchSize(n int)
}

// ConnParams are the connection settings shared by every backend. A non-empty
// DSN wins over the discrete fields.
type ConnParams struct {
	Host           string
	Port           int
	Database       string
	User           string
	Password       string
	SSLMode        string
	DSN            string
	ConnectTimeout time.Duration
}

// HostPort joins Host and Port, falling back to def when Port is zero.
func (p ConnParams) HostPort(def int) string {
	port := p.Port
	if port == 0 {
		port = def
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Opener opens one Session.
type Opener func(ctx context.Context, p ConnParams) (Session, error)

// Backend pairs a dialect with the function that connects to it.
type Backend struct {
	Dialect Dialect
	Open    Opener
}

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{}
)

// Register registers a backend under kind (e.g. "redshift", "sqlite").
//
// Call Register from an init() function in a backend package. Registering the
// same kind twice panics so that backend selection is never ambiguous.
func Register(kind string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if kind == "" {
		panic("warehouse: Register called with empty kind")
	}
	if b.Dialect == nil || b.Open == nil {
		panic(fmt.Sprintf("warehouse: Register called with incomplete backend for kind=%q", kind))
	}
	if _, exists := backends[kind]; exists {
		panic(fmt.Sprintf("warehouse: backend already registered for kind=%q", kind))
	}
	backends[kind] = b
}

// Lookup returns the backend registered under kind.
func Lookup(kind string) (Backend, error) {
	if kind == "" {
		return Backend{}, fmt.Errorf("warehouse: missing kind")
	}

	backendsMu.RLock()
	b, ok := backends[kind]
	backendsMu.RUnlock()

	if !ok {
		return Backend{}, fmt.Errorf("unsupported warehouse.kind=%s (registered: %v)", kind, Kinds())
	}
	return b, nil
}

// Open connects to the backend registered under kind.
func Open(ctx context.Context, kind string, p ConnParams) (Session, error) {
	b, err := Lookup(kind)
	if err != nil {
		return nil, err
	}
	return b.Open(ctx, p)
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
