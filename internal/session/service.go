package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jimmypocock/FameFit-sub002/internal/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrSessionFull is a business-rule rejection, not a transient fault;
	// callers must not retry it automatically.
	ErrSessionFull = errors.New("session is full")

	ErrNotFound          = errors.New("session not found")
	ErrNotHost           = errors.New("only the host may do this")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBadJoinCode       = errors.New("join code does not match")
)

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

// rowQuerier is the read surface shared by the pool and an open
// transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Service) CreateSession(ctx context.Context, input Session) (Session, error) {
	input.ID = uuid.NewString()
	if input.Status == "" {
		input.Status = StatusScheduled
	}
	if input.MaxParticipants <= 0 {
		input.MaxParticipants = 10
	}
	if input.JoinCode == "" {
		input.JoinCode = newJoinCode()
	}
	if input.StartsAt.IsZero() {
		input.StartsAt = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO workout_sessions (id, name, activity_kind, host_id, max_participants, starts_at, ends_at, status, is_private, join_code, tags)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at
	`, input.ID, input.Name, input.ActivityKind, input.HostID, input.MaxParticipants,
		input.StartsAt, timePtr(input.EndsAt), input.Status, input.IsPrivate, input.JoinCode, input.Tags)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Session{}, err
	}

	// the host is always a member of their own session
	if _, err := insertParticipant(ctx, s.db, input.ID, input.HostID, MemberJoined); err != nil {
		return Session{}, err
	}
	return input, nil
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return fetchSession(ctx, s.db, id, false)
}

// Join adds a user to the session. The session row stays locked for the
// duration, so the count of joined or active participants never exceeds
// the cap even under concurrent joins: a join at capacity fails with
// ErrSessionFull and changes nothing. Re-joining while already seated
// adds no seat and succeeds even at capacity.
func (s *Service) Join(ctx context.Context, sessionID, userID, joinCode string) (Participant, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Participant{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sess, err := fetchSession(ctx, tx, sessionID, true)
	if err != nil {
		return Participant{}, err
	}
	if sess.Status == StatusCompleted || sess.Status == StatusCancelled {
		return Participant{}, ErrInvalidTransition
	}
	if sess.IsPrivate && userID != sess.HostID && !strings.EqualFold(joinCode, sess.JoinCode) {
		return Participant{}, ErrBadJoinCode
	}

	current, err := participantStatus(ctx, tx, sessionID, userID)
	if err != nil {
		return Participant{}, err
	}
	if current != MemberJoined && current != MemberActive {
		count, err := occupiedSeats(ctx, tx, sessionID)
		if err != nil {
			return Participant{}, err
		}
		if count >= sess.MaxParticipants {
			return Participant{}, ErrSessionFull
		}
	}

	p, err := insertParticipant(ctx, tx, sessionID, userID, MemberJoined)
	if err != nil {
		return Participant{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Participant{}, err
	}
	return p, nil
}

func (s *Service) Leave(ctx context.Context, sessionID, userID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE session_participants SET status=$3
		WHERE session_id=$1 AND user_id=$2
	`, sessionID, userID, MemberDropped)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Start moves a scheduled session to active. Only the host may start.
func (s *Service) Start(ctx context.Context, sessionID, callerID string) (Session, error) {
	return s.transition(ctx, sessionID, callerID, StatusScheduled, StatusActive)
}

func (s *Service) Complete(ctx context.Context, sessionID, callerID string) (Session, error) {
	return s.transition(ctx, sessionID, callerID, StatusActive, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, sessionID, callerID string) (Session, error) {
	return s.transition(ctx, sessionID, callerID, StatusScheduled, StatusCancelled)
}

func (s *Service) Participants(ctx context.Context, sessionID string) ([]Participant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT session_id, user_id, status, COALESCE(latest_record_id, ''), joined_at
		FROM session_participants WHERE session_id=$1
		ORDER BY joined_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.SessionID, &p.UserID, &p.Status, &p.LatestRecordID, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (s *Service) transition(ctx context.Context, sessionID, callerID, from, to string) (Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.HostID != callerID {
		return Session{}, ErrNotHost
	}
	if sess.Status != from {
		return Session{}, ErrInvalidTransition
	}

	_, err = s.db.Exec(ctx, `
		UPDATE workout_sessions SET status=$2 WHERE id=$1 AND status=$3
	`, sessionID, to, from)
	if err != nil {
		return Session{}, err
	}
	sess.Status = to
	return sess, nil
}

func fetchSession(ctx context.Context, q rowQuerier, id string, forUpdate bool) (Session, error) {
	query := `
		SELECT id, name, activity_kind, host_id, max_participants, starts_at, ends_at, status, is_private, join_code, tags, created_at
		FROM workout_sessions WHERE id=$1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := q.QueryRow(ctx, query, id)

	var sess Session
	var endsAt *time.Time
	if err := row.Scan(&sess.ID, &sess.Name, &sess.ActivityKind, &sess.HostID, &sess.MaxParticipants,
		&sess.StartsAt, &endsAt, &sess.Status, &sess.IsPrivate, &sess.JoinCode, &sess.Tags, &sess.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if endsAt != nil {
		sess.EndsAt = *endsAt
	}
	return sess, nil
}

func participantStatus(ctx context.Context, q rowQuerier, sessionID, userID string) (string, error) {
	var status string
	err := q.QueryRow(ctx, `
		SELECT status FROM session_participants
		WHERE session_id=$1 AND user_id=$2
	`, sessionID, userID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return status, err
}

func occupiedSeats(ctx context.Context, q rowQuerier, sessionID string) (int, error) {
	var count int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM session_participants
		WHERE session_id=$1 AND status = ANY($2)
	`, sessionID, []string{MemberJoined, MemberActive}).Scan(&count)
	return count, err
}

func insertParticipant(ctx context.Context, q rowQuerier, sessionID, userID, status string) (Participant, error) {
	p := Participant{SessionID: sessionID, UserID: userID, Status: status}
	row := q.QueryRow(ctx, `
		INSERT INTO session_participants (session_id, user_id, status)
		VALUES ($1,$2,$3)
		ON CONFLICT (session_id, user_id) DO UPDATE SET status=$3
		RETURNING joined_at
	`, sessionID, userID, status)
	if err := row.Scan(&p.JoinedAt); err != nil {
		return Participant{}, err
	}
	return p, nil
}

func newJoinCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
