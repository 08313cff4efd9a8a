// Package call owns call records and the call lifecycle state machine.
//
// The ledger is deliberately transport-agnostic: it operates purely on
// identities and call IDs and has no side effects beyond its own table,
// so it can be unit tested without any networking.
package call

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a call. Rejected and Ended are terminal.
type Status int

const (
	StatusCalling Status = iota // ringing, awaiting accept/reject
	StatusActive                // accepted, voice flowing
	StatusRejected
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusCalling:
		return "calling"
	case StatusActive:
		return "active"
	case StatusRejected:
		return "rejected"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transitions are allowed from s.
func (s Status) terminal() bool {
	return s == StatusRejected || s == StatusEnded
}

// Record is the unit of call lifecycle state. AcceptedAt and EndedAt are
// zero until the corresponding transition happens.
type Record struct {
	ID         string
	Caller     string
	Receiver   string
	Status     Status
	StartedAt  time.Time
	AcceptedAt time.Time
	EndedAt    time.Time
}

// ErrNotFound is returned when a call ID is unknown to the ledger.
var ErrNotFound = errors.New("call not found")

// ErrInvalidState is returned when a transition is requested on a record
// whose current status does not permit it. The record is left unchanged.
var ErrInvalidState = errors.New("call not in a state that permits this transition")

// endedGraceDelay is how long an ended or rejected record stays queryable
// before it is reclaimed, so a concurrent terminal-state query does not
// race against deletion.
const endedGraceDelay = 5 * time.Second

// Ledger tracks all call records for the process. Safe for concurrent use.
type Ledger struct {
	logger *slog.Logger
	grace  time.Duration

	mu    sync.Mutex
	calls map[string]*Record
}

// NewLedger creates an empty call ledger.
func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{
		logger: logger.With("subsystem", "call-ledger"),
		grace:  endedGraceDelay,
		calls:  make(map[string]*Record),
	}
}

// newCallID builds a call ID from the two identities and the creation time.
// A random suffix guarantees uniqueness even when two calls between the
// same pair are created within the clock's resolution.
func newCallID(caller, receiver string, at time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s_%s_%d_%s", caller, receiver, at.UnixNano(), suffix)
}

// Initiate creates a new call record in the Calling state and returns a
// copy of it. It never fails: validating that the identities exist or are
// reachable is the gateway's concern, not the ledger's. Nothing prevents
// several simultaneous calls between the same pair.
func (l *Ledger) Initiate(caller, receiver string) Record {
	now := time.Now()
	rec := &Record{
		ID:        newCallID(caller, receiver, now),
		Caller:    caller,
		Receiver:  receiver,
		Status:    StatusCalling,
		StartedAt: now,
	}

	l.mu.Lock()
	l.calls[rec.ID] = rec
	l.mu.Unlock()

	l.logger.Info("call initiated",
		"call_id", rec.ID,
		"caller", caller,
		"receiver", receiver,
	)
	return *rec
}

// Accept transitions a Calling record to Active. Unknown IDs return
// ErrNotFound; records in any other state are left unchanged and
// ErrInvalidState is returned along with a copy of the record.
func (l *Ledger) Accept(id string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.calls[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status != StatusCalling {
		return *rec, ErrInvalidState
	}

	rec.Status = StatusActive
	rec.AcceptedAt = time.Now()
	l.logger.Info("call accepted", "call_id", id)
	return *rec, nil
}

// Reject transitions a Calling record to Rejected. Unknown IDs return
// ErrNotFound; records in any other state are left unchanged and
// ErrInvalidState is returned along with a copy of the record.
func (l *Ledger) Reject(id string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.calls[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status != StatusCalling {
		return *rec, ErrInvalidState
	}

	rec.Status = StatusRejected
	l.scheduleRemoval(rec.ID)
	l.logger.Info("call rejected", "call_id", id)
	return *rec, nil
}

// End transitions any non-terminal record to Ended and schedules it for
// removal after the grace delay. Ending an already-terminal record is a
// no-op returning ErrInvalidState, which makes a concurrent re-end
// harmless: removal is keyed by call ID and fires once.
func (l *Ledger) End(id string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.calls[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Status.terminal() {
		return *rec, ErrInvalidState
	}

	rec.Status = StatusEnded
	rec.EndedAt = time.Now()
	l.scheduleRemoval(rec.ID)
	l.logger.Info("call ended", "call_id", id)
	return *rec, nil
}

// scheduleRemoval reclaims a terminal record after the grace delay.
// Callers must hold l.mu. The timer tolerates the record already being gone.
func (l *Ledger) scheduleRemoval(id string) {
	time.AfterFunc(l.grace, func() {
		l.mu.Lock()
		delete(l.calls, id)
		l.mu.Unlock()
	})
}

// Get returns a copy of the record for id, if it is still in the table.
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.calls[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// ActiveCallFor returns the first record in which identity is the caller
// or the receiver and the status is Calling or Active. Iteration order is
// unspecified; "first found" carries no ordering guarantee.
func (l *Ledger) ActiveCallFor(identity string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range l.calls {
		if rec.Caller != identity && rec.Receiver != identity {
			continue
		}
		if rec.Status == StatusCalling || rec.Status == StatusActive {
			return *rec, true
		}
	}
	return Record{}, false
}

// ActiveCount returns the number of records in the Calling or Active state.
func (l *Ledger) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, rec := range l.calls {
		if rec.Status == StatusCalling || rec.Status == StatusActive {
			n++
		}
	}
	return n
}
