package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/farepilot/internal/core/eventbus"
	"github.com/colonyops/farepilot/internal/core/logging"
	"github.com/colonyops/farepilot/internal/data/db"
)

const writeTimeout = 5 * time.Second

// Transition is one journaled state change.
type Transition struct {
	CycleID string    `json:"cycle_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Kind    string    `json:"kind"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}

// Evaluation is one journaled filter verdict.
type Evaluation struct {
	CycleID     string    `json:"cycle_id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Price       int       `json:"price"`
	Scheduled   string    `json:"scheduled"`
	Category    string    `json:"category"`
	Confidence  string    `json:"confidence"`
	Accepted    bool      `json:"accepted"`
	Branch      string    `json:"branch"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

// Acceptance is one completed accept workflow.
type Acceptance struct {
	ID          int64     `json:"id"`
	CycleID     string    `json:"cycle_id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Price       int       `json:"price"`
	Scheduled   string    `json:"scheduled"`
	Category    string    `json:"category"`
	At          time.Time `json:"at"`
}

// Fault is one journaled handler failure.
type Fault struct {
	CycleID string    `json:"cycle_id"`
	State   string    `json:"state"`
	Class   string    `json:"class"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Summary aggregates acceptances over a period.
type Summary struct {
	Count int `json:"count"`
	Total int `json:"total"`
}

// JournalStore records engine activity from the event bus and serves it
// back for the history command.
type JournalStore struct {
	db  *db.DB
	now func() time.Time
	log zerolog.Logger
}

// NewJournalStore creates a SQLite-backed journal.
func NewJournalStore(db *db.DB) *JournalStore {
	return &JournalStore{db: db, now: time.Now, log: logging.Component("journal")}
}

// Register subscribes the journal to the engine events it records.
func (s *JournalStore) Register(bus *eventbus.EventBus) {
	bus.SubscribeEngineStateChanged(func(p eventbus.StateChangedPayload) {
		s.write("transition", func(ctx context.Context, q *db.Queries) error {
			return q.InsertTransition(ctx, db.InsertTransitionParams{
				CycleID:   p.CycleID,
				FromState: string(p.From),
				ToState:   string(p.To),
				Kind:      p.Kind.String(),
				Reason:    p.Reason,
				CreatedAt: s.stamp(p.At),
			})
		})
	})

	bus.SubscribeRecordEvaluated(func(p eventbus.RecordEvaluatedPayload) {
		r := p.Record
		s.write("evaluation", func(ctx context.Context, q *db.Queries) error {
			return q.InsertEvaluation(ctx, db.InsertEvaluationParams{
				CycleID:     p.CycleID,
				Origin:      r.Origin(),
				Destination: r.Destination(),
				Price:       int64(r.Price()),
				Scheduled:   r.Scheduled(),
				Category:    r.Category(),
				Confidence:  r.Confidence().String(),
				Accepted:    p.Accepted,
				Branch:      string(p.Branch),
				Reason:      p.Reason,
				CreatedAt:   s.now().UnixNano(),
			})
		})
	})

	bus.SubscribeOrderAccepted(func(p eventbus.OrderAcceptedPayload) {
		r := p.Record
		s.write("acceptance", func(ctx context.Context, q *db.Queries) error {
			_, err := q.InsertAcceptance(ctx, db.InsertAcceptanceParams{
				CycleID:     p.CycleID,
				Origin:      r.Origin(),
				Destination: r.Destination(),
				Price:       int64(r.Price()),
				Scheduled:   r.Scheduled(),
				Category:    r.Category(),
				CreatedAt:   s.stamp(p.At),
			})
			return err
		})
	})

	bus.SubscribeEngineFault(func(p eventbus.EngineFaultPayload) {
		s.write("fault", func(ctx context.Context, q *db.Queries) error {
			return q.InsertFault(ctx, db.InsertFaultParams{
				CycleID:   p.CycleID,
				State:     string(p.State),
				Class:     p.Class,
				Message:   p.Err,
				CreatedAt: s.now().UnixNano(),
			})
		})
	})
}

func (s *JournalStore) stamp(at time.Time) int64 {
	if at.IsZero() {
		at = s.now()
	}
	return at.UnixNano()
}

// write runs on the bus dispatch goroutine. Failures are logged and dropped
// so the journal never blocks or fails the engine.
func (s *JournalStore) write(kind string, fn func(context.Context, *db.Queries) error) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := fn(ctx, s.db.Queries()); err != nil {
		ev := s.log.Error()
		if IsBusyError(err) {
			ev = s.log.Warn()
		}
		ev.Err(err).Str("kind", kind).Msg("journal write failed")
	}
}

// Transitions returns up to limit transitions, newest first. An empty
// cycleID lists every cycle.
func (s *JournalStore) Transitions(ctx context.Context, cycleID string, limit int) ([]Transition, error) {
	rows, err := s.db.Queries().ListTransitions(ctx, db.ListTransitionsParams{CycleID: cycleID, Limit: sqlLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}

	out := make([]Transition, 0, len(rows))
	for _, row := range rows {
		out = append(out, Transition{
			CycleID: row.CycleID,
			From:    row.FromState,
			To:      row.ToState,
			Kind:    row.Kind,
			Reason:  row.Reason,
			At:      time.Unix(0, row.CreatedAt),
		})
	}
	return out, nil
}

// Evaluations returns up to limit verdicts, newest first.
func (s *JournalStore) Evaluations(ctx context.Context, cycleID string, limit int) ([]Evaluation, error) {
	rows, err := s.db.Queries().ListEvaluations(ctx, db.ListEvaluationsParams{CycleID: cycleID, Limit: sqlLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}

	out := make([]Evaluation, 0, len(rows))
	for _, row := range rows {
		out = append(out, Evaluation{
			CycleID:     row.CycleID,
			Origin:      row.Origin,
			Destination: row.Destination,
			Price:       int(row.Price),
			Scheduled:   row.Scheduled,
			Category:    row.Category,
			Confidence:  row.Confidence,
			Accepted:    row.Accepted,
			Branch:      row.Branch,
			Reason:      row.Reason,
			At:          time.Unix(0, row.CreatedAt),
		})
	}
	return out, nil
}

// Acceptances returns up to limit accepted orders, newest first.
func (s *JournalStore) Acceptances(ctx context.Context, limit int) ([]Acceptance, error) {
	rows, err := s.db.Queries().ListAcceptances(ctx, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list acceptances: %w", err)
	}

	out := make([]Acceptance, 0, len(rows))
	for _, row := range rows {
		out = append(out, Acceptance{
			ID:          row.ID,
			CycleID:     row.CycleID,
			Origin:      row.Origin,
			Destination: row.Destination,
			Price:       int(row.Price),
			Scheduled:   row.Scheduled,
			Category:    row.Category,
			At:          time.Unix(0, row.CreatedAt),
		})
	}
	return out, nil
}

// Faults returns up to limit handler failures, newest first.
func (s *JournalStore) Faults(ctx context.Context, limit int) ([]Fault, error) {
	rows, err := s.db.Queries().ListFaults(ctx, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list faults: %w", err)
	}

	out := make([]Fault, 0, len(rows))
	for _, row := range rows {
		out = append(out, Fault{
			CycleID: row.CycleID,
			State:   row.State,
			Class:   row.Class,
			Message: row.Message,
			At:      time.Unix(0, row.CreatedAt),
		})
	}
	return out, nil
}

// SummarySince totals acceptances at or after since.
func (s *JournalStore) SummarySince(ctx context.Context, since time.Time) (Summary, error) {
	sum, err := s.db.Queries().SummarizeAcceptancesSince(ctx, since.UnixNano())
	if err != nil {
		return Summary{}, fmt.Errorf("summarize acceptances: %w", err)
	}
	return Summary{Count: int(sum.Count), Total: int(sum.Total)}, nil
}

// Prune deletes transitions and evaluations older than before. Acceptances
// and faults are kept.
func (s *JournalStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	err := s.db.WithTx(ctx, func(q *db.Queries) error {
		n, err := q.DeleteTransitionsBefore(ctx, before.UnixNano())
		if err != nil {
			return fmt.Errorf("prune transitions: %w", err)
		}
		m, err := q.DeleteEvaluationsBefore(ctx, before.UnixNano())
		if err != nil {
			return fmt.Errorf("prune evaluations: %w", err)
		}
		removed = n + m
		return nil
	})
	return removed, err
}
