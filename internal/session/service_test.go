package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func sessionRows(t *testing.T, sess Session) *pgxmock.Rows {
	t.Helper()
	return pgxmock.NewRows([]string{"id", "name", "activity_kind", "host_id", "max_participants", "starts_at", "ends_at", "status", "is_private", "join_code", "tags", "created_at"}).
		AddRow(sess.ID, sess.Name, sess.ActivityKind, sess.HostID, sess.MaxParticipants, sess.StartsAt, (*time.Time)(nil), sess.Status, sess.IsPrivate, sess.JoinCode, sess.Tags, sess.CreatedAt)
}

func expectGet(t *testing.T, mock pgxmock.PgxPoolIface, sess Session) {
	t.Helper()
	mock.ExpectQuery(`SELECT id, name, activity_kind, host_id`).
		WithArgs(sess.ID).
		WillReturnRows(sessionRows(t, sess))
}

func expectSeatCount(mock pgxmock.PgxPoolIface, sessionID string, count int) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM session_participants`).
		WithArgs(sessionID, []string{MemberJoined, MemberActive}).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(count))
}

func expectMembership(mock pgxmock.PgxPoolIface, sessionID, userID, status string) {
	expect := mock.ExpectQuery(`SELECT status FROM session_participants`).
		WithArgs(sessionID, userID)
	if status == "" {
		expect.WillReturnError(pgx.ErrNoRows)
		return
	}
	expect.WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(status))
}

func baseSession() Session {
	return Session{
		ID:              "session-1",
		Name:            "Morning Run",
		ActivityKind:    "running",
		HostID:          "host-1",
		MaxParticipants: 2,
		StartsAt:        time.Now(),
		Status:          StatusScheduled,
		JoinCode:        "ABCD1234",
	}
}

func TestCreateSessionJoinsHost(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`INSERT INTO workout_sessions`).
		WithArgs(pgxmock.AnyArg(), "Morning Run", "running", "host-1", 2,
			pgxmock.AnyArg(), pgxmock.AnyArg(), StatusScheduled, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectQuery(`INSERT INTO session_participants`).
		WithArgs(pgxmock.AnyArg(), "host-1", MemberJoined).
		WillReturnRows(pgxmock.NewRows([]string{"joined_at"}).AddRow(time.Now()))

	svc := NewService(mock)
	sess, err := svc.CreateSession(context.Background(), Session{
		Name:            "Morning Run",
		ActivityKind:    "running",
		HostID:          "host-1",
		MaxParticipants: 2,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID == "" || sess.JoinCode == "" {
		t.Fatalf("expected generated id and join code, got %+v", sess)
	}
	if sess.Status != StatusScheduled {
		t.Fatalf("expected scheduled status, got %s", sess.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJoinSuccess(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()

	mock.ExpectBegin()
	expectGet(t, mock, sess)
	expectMembership(mock, sess.ID, "user-2", "")
	expectSeatCount(mock, sess.ID, 1)
	mock.ExpectQuery(`INSERT INTO session_participants`).
		WithArgs(sess.ID, "user-2", MemberJoined).
		WillReturnRows(pgxmock.NewRows([]string{"joined_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	svc := NewService(mock)
	p, err := svc.Join(context.Background(), sess.ID, "user-2", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if p.Status != MemberJoined {
		t.Fatalf("expected joined status, got %s", p.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJoinSessionFull(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()

	mock.ExpectBegin()
	expectGet(t, mock, sess)
	expectMembership(mock, sess.ID, "user-3", "")
	expectSeatCount(mock, sess.ID, 2)
	mock.ExpectRollback()

	svc := NewService(mock)
	if _, err := svc.Join(context.Background(), sess.ID, "user-3", ""); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}

	// no participant insert happened, transaction rolled back
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("join at capacity mutated state: %v", err)
	}
}

func TestJoinAlreadySeatedIsIdempotentAtCapacity(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()

	// user-2 already holds a seat; a re-join at capacity adds none and
	// must not be rejected
	mock.ExpectBegin()
	expectGet(t, mock, sess)
	expectMembership(mock, sess.ID, "user-2", MemberJoined)
	mock.ExpectQuery(`INSERT INTO session_participants`).
		WithArgs(sess.ID, "user-2", MemberJoined).
		WillReturnRows(pgxmock.NewRows([]string{"joined_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	svc := NewService(mock)
	p, err := svc.Join(context.Background(), sess.ID, "user-2", "")
	if err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if p.Status != MemberJoined {
		t.Fatalf("expected joined status, got %s", p.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJoinLocksSessionRow(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM workout_sessions WHERE id=\$1\s+FOR UPDATE`).
		WithArgs(sess.ID).
		WillReturnRows(sessionRows(t, sess))
	expectMembership(mock, sess.ID, "user-2", "")
	expectSeatCount(mock, sess.ID, 1)
	mock.ExpectQuery(`INSERT INTO session_participants`).
		WithArgs(sess.ID, "user-2", MemberJoined).
		WillReturnRows(pgxmock.NewRows([]string{"joined_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	svc := NewService(mock)
	if _, err := svc.Join(context.Background(), sess.ID, "user-2", ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("capacity check ran without the row lock: %v", err)
	}
}

func TestJoinPrivateRequiresCode(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()
	sess.IsPrivate = true

	mock.ExpectBegin()
	expectGet(t, mock, sess)
	mock.ExpectRollback()

	svc := NewService(mock)
	if _, err := svc.Join(context.Background(), sess.ID, "user-2", "WRONG"); !errors.Is(err, ErrBadJoinCode) {
		t.Fatalf("expected ErrBadJoinCode, got %v", err)
	}
}

func TestJoinTerminalSession(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()
	sess.Status = StatusCancelled

	mock.ExpectBegin()
	expectGet(t, mock, sess)
	mock.ExpectRollback()

	svc := NewService(mock)
	if _, err := svc.Join(context.Background(), sess.ID, "user-2", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestStartHostOnly(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()

	expectGet(t, mock, sess)

	svc := NewService(mock)
	if _, err := svc.Start(context.Background(), sess.ID, "user-2"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
}

func TestStartFromScheduled(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()

	expectGet(t, mock, sess)
	mock.ExpectExec(`UPDATE workout_sessions SET status`).
		WithArgs(sess.ID, StatusActive, StatusScheduled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService(mock)
	got, err := svc.Start(context.Background(), sess.ID, sess.HostID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("expected active, got %s", got.Status)
	}
}

func TestStartTerminalImmutable(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()
	sess.Status = StatusCompleted

	expectGet(t, mock, sess)

	svc := NewService(mock)
	if _, err := svc.Start(context.Background(), sess.ID, sess.HostID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCompleteFromActive(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()
	sess.Status = StatusActive

	expectGet(t, mock, sess)
	mock.ExpectExec(`UPDATE workout_sessions SET status`).
		WithArgs(sess.ID, StatusCompleted, StatusActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService(mock)
	got, err := svc.Complete(context.Background(), sess.ID, sess.HostID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestCancelOnlyFromScheduled(t *testing.T) {
	mock := newMock(t)
	sess := baseSession()
	sess.Status = StatusActive

	expectGet(t, mock, sess)

	svc := NewService(mock)
	if _, err := svc.Cancel(context.Background(), sess.ID, sess.HostID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestLeave(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`UPDATE session_participants SET status`).
		WithArgs("session-1", "user-2", MemberDropped).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := NewService(mock)
	if err := svc.Leave(context.Background(), "session-1", "user-2"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	mock.ExpectExec(`UPDATE session_participants SET status`).
		WithArgs("session-1", "ghost", MemberDropped).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := svc.Leave(context.Background(), "session-1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id, name, activity_kind, host_id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService(mock)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParticipants(t *testing.T) {
	mock := newMock(t)

	joined := time.Now()
	mock.ExpectQuery(`SELECT session_id, user_id, status`).
		WithArgs("session-1").
		WillReturnRows(pgxmock.NewRows([]string{"session_id", "user_id", "status", "latest_record_id", "joined_at"}).
			AddRow("session-1", "host-1", MemberJoined, "", joined).
			AddRow("session-1", "user-2", MemberActive, "rec-9", joined.Add(time.Minute)))

	svc := NewService(mock)
	participants, err := svc.Participants(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants) != 2 || participants[1].LatestRecordID != "rec-9" {
		t.Fatalf("unexpected participants: %+v", participants)
	}
}
