package engine

import (
	"github.com/rotisserie/eris"

	"github.com/urbansafe/evacroute/internal/search"
	"github.com/urbansafe/evacroute/internal/session"
)

// Error taxonomy exposed to callers. Search and session sentinels are
// re-exported so callers match against one package.
var (
	// ErrNoSafeZoneAvailable means the safe-zone set is empty or none is
	// reachable. Fatal for the request.
	ErrNoSafeZoneAvailable = eris.New("engine: no safe zone available")

	// ErrInvalidInput rejects malformed locations or session ids. Never
	// retried.
	ErrInvalidInput = eris.New("engine: invalid input")

	// ErrNoPathFound: search exhausted without reaching a goal. The previous
	// route is retained; the next trigger retries.
	ErrNoPathFound = search.ErrNoPathFound

	// ErrDeadlineExceeded: search budget exceeded. Retried with backoff; the
	// previous route is retained meanwhile.
	ErrDeadlineExceeded = search.ErrDeadlineExceeded

	// ErrSessionNotFound: stale or evicted session reference; the caller
	// must create a new session.
	ErrSessionNotFound = session.ErrSessionNotFound
)
