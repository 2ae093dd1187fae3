package session

import "time"

// Session status lifecycle is monotonic: scheduled -> active -> completed,
// or scheduled -> cancelled. Terminal statuses never change.
const (
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	MemberInvited   = "invited"
	MemberJoined    = "joined"
	MemberActive    = "active"
	MemberCompleted = "completed"
	MemberDropped   = "dropped"
)

type Session struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ActivityKind    string    `json:"activity_kind"`
	HostID          string    `json:"host_id"`
	MaxParticipants int       `json:"max_participants"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at,omitempty"`
	Status          string    `json:"status"`
	IsPrivate       bool      `json:"is_private"`
	JoinCode        string    `json:"join_code,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Participant struct {
	SessionID      string    `json:"session_id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	LatestRecordID string    `json:"latest_record_id,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
}
