package api

import (
	"time"

	"github.com/ntrung/songclash/internal/domain"
)

// Wire representations of domain state. Every payload is self-contained so
// subscribers never need prior events to interpret one.
type (
	sessionView struct {
		SessionID  string       `json:"session_id"`
		Code       string       `json:"code"`
		PlaylistID string       `json:"playlist_id"`
		Status     string       `json:"status"`
		CreatedAt  time.Time    `json:"created_at"`
		EndedAt    *time.Time   `json:"ended_at,omitempty"`
		Players    []playerView `json:"players"`
	}

	playerView struct {
		PlayerID          string `json:"player_id"`
		Nickname          string `json:"nickname"`
		IsHost            bool   `json:"is_host"`
		Score             int    `json:"score"`
		SongsCorrect      int    `json:"songs_correct"`
		TotalGuesses      int    `json:"total_guesses"`
		CompletionSeconds *int   `json:"completion_seconds,omitempty"`
		FirstToFinish     *bool  `json:"first_to_finish,omitempty"`
	}

	leaderboardView struct {
		SessionID string                 `json:"session_id"`
		Entries   []leaderboardEntryView `json:"entries"`
	}

	leaderboardEntryView struct {
		Nickname string  `json:"nickname"`
		Score    float64 `json:"score"`
	}
)

func sessionViewOf(s *domain.Session) sessionView {
	v := sessionView{
		SessionID:  s.SessionID,
		Code:       s.Code,
		PlaylistID: s.PlaylistID,
		Status:     string(s.Status),
		CreatedAt:  s.CreatedAt,
		EndedAt:    s.EndedAt,
		Players:    make([]playerView, 0, len(s.Players)),
	}
	for _, p := range s.Players {
		v.Players = append(v.Players, playerViewOf(p))
	}
	return v
}

func playerViewOf(p *domain.Player) playerView {
	return playerView{
		PlayerID:          p.PlayerID,
		Nickname:          p.Nickname,
		IsHost:            p.IsHost,
		Score:             p.Score,
		SongsCorrect:      p.SongsCorrect,
		TotalGuesses:      p.TotalGuesses,
		CompletionSeconds: p.CompletionSeconds,
		FirstToFinish:     p.FinishRank.Bool(),
	}
}

func leaderboardViewOf(l *domain.Leaderboard) leaderboardView {
	v := leaderboardView{
		SessionID: l.SessionID,
		Entries:   make([]leaderboardEntryView, 0, len(l.Entries)),
	}
	for _, e := range l.Entries {
		v.Entries = append(v.Entries, leaderboardEntryView{Nickname: e.Nickname, Score: e.Score})
	}
	return v
}
