package history

import (
	"context"
	"time"

	"github.com/doorsync/doorsync-core/internal/door"
)

// writeTimeout bounds one insert issued from the fan-out path.
const writeTimeout = 5 * time.Second

// Logger interface for optional logging.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder adapts the repository to the fan-out subscriber signature.
//
// Inserts run with their own timeout and failures are logged rather than
// returned: a full disk or locked database must never disturb state
// tracking.
type Recorder struct {
	repo   *Repository
	logger Logger
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo *Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger sets a logger for insert failures.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// HandleTransition records one transition, logging any failure.
func (r *Recorder) HandleTransition(tr door.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.repo.RecordTransition(ctx, tr, SourceStream); err != nil {
		r.logger.Warn("transition history write dropped",
			"door_id", int(tr.Door),
			"error", err,
		)
	}
}
