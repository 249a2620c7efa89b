package shared

import (
	"context"
	"time"
)

// Transactor runs fn as one atomic unit. Repositories called with the context
// passed to fn take part in the same transaction; when fn returns an error
// every write made through that context is discarded.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock supplies the current time. Services take one so tests can pin "now".
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns wall-clock time in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
