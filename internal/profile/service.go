package profile

import (
	"context"
	"errors"

	"github.com/jimmypocock/FameFit-sub002/internal/db"
	"github.com/jimmypocock/FameFit-sub002/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("profile not found")

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

func (s *Service) Fetch(ctx context.Context, userID string) (Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, username, display_name, COALESCE(avatar_url, ''), created_at
		FROM profiles WHERE user_id=$1
	`, userID)

	var p Profile
	if err := row.Scan(&p.UserID, &p.Username, &p.DisplayName, &p.AvatarURL, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// DecorateRanked joins ranked entries with display metadata. An
// unresolved profile never blocks the leaderboard: the entry keeps a
// placeholder name instead.
func (s *Service) DecorateRanked(ctx context.Context, entries []metrics.RankedEntry) []metrics.LeaderboardEntry {
	out := make([]metrics.LeaderboardEntry, 0, len(entries))
	for _, entry := range entries {
		decorated := metrics.LeaderboardEntry{
			RankedEntry: entry,
			DisplayName: placeholderName(entry.UserID),
		}
		p, err := s.Fetch(ctx, entry.UserID)
		switch {
		case err == nil:
			decorated.DisplayName = p.DisplayName
			decorated.AvatarURL = p.AvatarURL
		case !errors.Is(err, ErrNotFound):
			log.Warn().Err(err).Str("user_id", entry.UserID).Msg("profile lookup failed, using placeholder")
		}
		out = append(out, decorated)
	}
	return out
}

func placeholderName(userID string) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Athlete " + short
}
