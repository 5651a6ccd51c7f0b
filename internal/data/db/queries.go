package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const insertTransition = `
INSERT INTO transitions (cycle_id, from_state, to_state, kind, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

type InsertTransitionParams struct {
	CycleID   string
	FromState string
	ToState   string
	Kind      string
	Reason    string
	CreatedAt int64
}

func (q *Queries) InsertTransition(ctx context.Context, arg InsertTransitionParams) error {
	_, err := q.db.ExecContext(ctx, insertTransition,
		arg.CycleID, arg.FromState, arg.ToState, arg.Kind, arg.Reason, arg.CreatedAt)
	return err
}

const listTransitions = `
SELECT id, cycle_id, from_state, to_state, kind, reason, created_at
FROM transitions
WHERE (?1 = '' OR cycle_id = ?1)
ORDER BY id DESC
LIMIT ?2
`

type ListTransitionsParams struct {
	CycleID string // empty lists every cycle
	Limit   int64
}

func (q *Queries) ListTransitions(ctx context.Context, arg ListTransitionsParams) ([]Transition, error) {
	rows, err := q.db.QueryContext(ctx, listTransitions, arg.CycleID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Transition
	for rows.Next() {
		var i Transition
		if err := rows.Scan(&i.ID, &i.CycleID, &i.FromState, &i.ToState, &i.Kind, &i.Reason, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteTransitionsBefore = `DELETE FROM transitions WHERE created_at < ?`

func (q *Queries) DeleteTransitionsBefore(ctx context.Context, before int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransitionsBefore, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertEvaluation = `
INSERT INTO evaluations (cycle_id, origin, destination, price, scheduled, category, confidence, accepted, branch, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertEvaluationParams struct {
	CycleID     string
	Origin      string
	Destination string
	Price       int64
	Scheduled   string
	Category    string
	Confidence  string
	Accepted    bool
	Branch      string
	Reason      string
	CreatedAt   int64
}

func (q *Queries) InsertEvaluation(ctx context.Context, arg InsertEvaluationParams) error {
	_, err := q.db.ExecContext(ctx, insertEvaluation,
		arg.CycleID, arg.Origin, arg.Destination, arg.Price, arg.Scheduled, arg.Category,
		arg.Confidence, arg.Accepted, arg.Branch, arg.Reason, arg.CreatedAt)
	return err
}

const listEvaluations = `
SELECT id, cycle_id, origin, destination, price, scheduled, category, confidence, accepted, branch, reason, created_at
FROM evaluations
WHERE (?1 = '' OR cycle_id = ?1)
ORDER BY id DESC
LIMIT ?2
`

type ListEvaluationsParams struct {
	CycleID string
	Limit   int64
}

func (q *Queries) ListEvaluations(ctx context.Context, arg ListEvaluationsParams) ([]Evaluation, error) {
	rows, err := q.db.QueryContext(ctx, listEvaluations, arg.CycleID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Evaluation
	for rows.Next() {
		var i Evaluation
		if err := rows.Scan(&i.ID, &i.CycleID, &i.Origin, &i.Destination, &i.Price, &i.Scheduled,
			&i.Category, &i.Confidence, &i.Accepted, &i.Branch, &i.Reason, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteEvaluationsBefore = `DELETE FROM evaluations WHERE created_at < ?`

func (q *Queries) DeleteEvaluationsBefore(ctx context.Context, before int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEvaluationsBefore, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertAcceptance = `
INSERT INTO acceptances (cycle_id, origin, destination, price, scheduled, category, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type InsertAcceptanceParams struct {
	CycleID     string
	Origin      string
	Destination string
	Price       int64
	Scheduled   string
	Category    string
	CreatedAt   int64
}

func (q *Queries) InsertAcceptance(ctx context.Context, arg InsertAcceptanceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertAcceptance,
		arg.CycleID, arg.Origin, arg.Destination, arg.Price, arg.Scheduled, arg.Category, arg.CreatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listAcceptances = `
SELECT id, cycle_id, origin, destination, price, scheduled, category, created_at
FROM acceptances
ORDER BY created_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListAcceptances(ctx context.Context, limit int64) ([]Acceptance, error) {
	rows, err := q.db.QueryContext(ctx, listAcceptances, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Acceptance
	for rows.Next() {
		var i Acceptance
		if err := rows.Scan(&i.ID, &i.CycleID, &i.Origin, &i.Destination, &i.Price,
			&i.Scheduled, &i.Category, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const summarizeAcceptancesSince = `
SELECT COUNT(*), COALESCE(SUM(price), 0) FROM acceptances WHERE created_at >= ?
`

type AcceptanceSummary struct {
	Count int64
	Total int64
}

func (q *Queries) SummarizeAcceptancesSince(ctx context.Context, since int64) (AcceptanceSummary, error) {
	var s AcceptanceSummary
	err := q.db.QueryRowContext(ctx, summarizeAcceptancesSince, since).Scan(&s.Count, &s.Total)
	return s, err
}

const insertFault = `
INSERT INTO faults (cycle_id, state, class, message, created_at)
VALUES (?, ?, ?, ?, ?)
`

type InsertFaultParams struct {
	CycleID   string
	State     string
	Class     string
	Message   string
	CreatedAt int64
}

func (q *Queries) InsertFault(ctx context.Context, arg InsertFaultParams) error {
	_, err := q.db.ExecContext(ctx, insertFault, arg.CycleID, arg.State, arg.Class, arg.Message, arg.CreatedAt)
	return err
}

const listFaults = `
SELECT id, cycle_id, state, class, message, created_at
FROM faults
ORDER BY id DESC
LIMIT ?
`

func (q *Queries) ListFaults(ctx context.Context, limit int64) ([]Fault, error) {
	rows, err := q.db.QueryContext(ctx, listFaults, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Fault
	for rows.Next() {
		var i Fault
		if err := rows.Scan(&i.ID, &i.CycleID, &i.State, &i.Class, &i.Message, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertNotification = `
INSERT INTO notifications (level, severity, source, message, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

type InsertNotificationParams struct {
	Level     string
	Severity  int64
	Source    string
	Message   string
	CreatedAt int64
}

func (q *Queries) InsertNotification(ctx context.Context, arg InsertNotificationParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertNotification, arg.Level, arg.Severity, arg.Source, arg.Message, arg.CreatedAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listNotifications = `
SELECT id, level, severity, source, message, created_at
FROM notifications
WHERE severity >= ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

type ListNotificationsParams struct {
	MinSeverity int64
	Limit       int64
}

func (q *Queries) ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, arg.MinSeverity, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Notification
	for rows.Next() {
		var i Notification
		if err := rows.Scan(&i.ID, &i.Level, &i.Severity, &i.Source, &i.Message, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteAllNotifications = `DELETE FROM notifications`

func (q *Queries) DeleteAllNotifications(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllNotifications)
	return err
}

const countNotifications = `SELECT COUNT(*) FROM notifications`

func (q *Queries) CountNotifications(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countNotifications).Scan(&n)
	return n, err
}
