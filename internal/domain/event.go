package domain

// Closed set of session-scoped event names. Every event carries a fixed
// payload shape; the notification gateway publishes them verbatim.
const (
	EventNamePlayerJoined       = "player.joined"
	EventNamePlayerLeft         = "player.left"
	EventNameHostChanged        = "host.changed"
	EventNameScoreUpdated       = "score.updated"
	EventNamePlayerCompleted    = "player.completed"
	EventNameGameCompleted      = "game.completed"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventPlayerJoined struct {
	Session Session
	Player  Player
}

func (EventPlayerJoined) Name() string { return EventNamePlayerJoined }

type EventPlayerLeft struct {
	SessionID string
	PlayerID  string
	Nickname  string
}

func (EventPlayerLeft) Name() string { return EventNamePlayerLeft }

type EventHostChanged struct {
	SessionID    string
	HostID       string
	HostNickname string
}

func (EventHostChanged) Name() string { return EventNameHostChanged }

// EventScoreUpdated is emitted for every recorded guess, correct or not.
type EventScoreUpdated struct {
	SessionID     string
	Player        Player
	SongID        string
	Correct       bool
	Points        int
	XP            int
	GameCompleted bool
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

// EventPlayerCompleted is emitted once, when a player finishes every song.
type EventPlayerCompleted struct {
	SessionID string
	Player    Player
}

func (EventPlayerCompleted) Name() string { return EventNamePlayerCompleted }

// EventGameCompleted is emitted once per session, by the first operation to
// observe the session leaving a non-terminal status. Session is a full
// snapshot of all players at completion time.
type EventGameCompleted struct {
	Session Session
}

func (EventGameCompleted) Name() string { return EventNameGameCompleted }

// Leaderboard is a session scoreboard sorted by score in descending order.
type Leaderboard struct {
	SessionID string
	Entries   []LeaderboardEntry
}

type LeaderboardEntry struct {
	Nickname string
	Score    float64
}

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
