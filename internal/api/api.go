// Package api is the HTTP boundary: request handlers over the session
// coordinator and leaderboard, plus the notification gateway that fans
// session events out to subscribers over redis pub/sub and websockets.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ntrung/songclash/internal/errors"
	"github.com/ntrung/songclash/internal/event"
	"github.com/ntrung/songclash/internal/leaderboard"
	"github.com/ntrung/songclash/internal/session"
)

type Config struct {
	Router       *gin.Engine
	EventBus     *event.Bus
	Session      *session.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string

	// JoinBaseURL is the public URL prefix encoded into join QR codes,
	// e.g. "https://songclash.example.com/join".
	JoinBaseURL string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type API struct {
	ss *session.Service
	ls *leaderboard.Service

	redis       Redis
	prefix      string
	joinBaseURL string
}

func New(c Config) *API {
	a := &API{
		ss:          c.Session,
		ls:          c.Leaderboard,
		redis:       c.Redis,
		prefix:      c.PubsubPrefix,
		joinBaseURL: c.JoinBaseURL,
	}

	v1 := c.Router.Group("/v1")
	v1.POST("/sessions", a.createSession)
	v1.GET("/sessions/:code", a.getSession)
	v1.POST("/sessions/:code/start", a.startSession)
	v1.POST("/sessions/:code/players", a.joinSession)
	v1.DELETE("/sessions/:code/players/:playerID", a.leaveSession)
	v1.POST("/sessions/:code/guesses", a.recordGuess)
	v1.POST("/sessions/:code/players/:playerID/complete", a.completePlayer)
	v1.GET("/sessions/:code/leaderboard", a.getLeaderboard)
	v1.GET("/sessions/:code/qr", a.joinQR)
	v1.GET("/sessions/:code/ws", a.sessionEvents)
	v1.GET("/leaderboard/xp", a.topXP)

	a.subscribeEvents(c.EventBus)

	return a
}

type createSessionRequest struct {
	PlaylistID string `json:"playlist_id" binding:"required"`
	Nickname   string `json:"nickname" binding:"required"`
	UserID     string `json:"user_id"`
}

func (a *API) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	ss, err := a.ss.CreateSession(c.Request.Context(), session.CreateSessionRequest{
		PlaylistID:   req.PlaylistID,
		HostNickname: req.Nickname,
		HostUserID:   req.UserID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionViewOf(ss))
}

func (a *API) getSession(c *gin.Context) {
	ss, err := a.ss.View(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionViewOf(ss))
}

func (a *API) startSession(c *gin.Context) {
	ss, err := a.ss.View(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	ss, err = a.ss.Start(c.Request.Context(), ss.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionViewOf(ss))
}

type joinSessionRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	UserID   string `json:"user_id"`
}

func (a *API) joinSession(c *gin.Context) {
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	ss, p, err := a.ss.Join(c.Request.Context(), session.JoinRequest{
		Code:     c.Param("code"),
		Nickname: req.Nickname,
		UserID:   req.UserID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": sessionViewOf(ss),
		"player":  playerViewOf(p),
	})
}

func (a *API) leaveSession(c *gin.Context) {
	ss, err := a.ss.View(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := a.ss.Leave(c.Request.Context(), session.LeaveRequest{
		SessionID: ss.SessionID,
		PlayerID:  c.Param("playerID"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": res.Deleted})
}

type recordGuessRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	SongID   string `json:"song_id" binding:"required"`
	Correct  *bool  `json:"correct" binding:"required"`
}

func (a *API) recordGuess(c *gin.Context) {
	var req recordGuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	res, err := a.ss.RecordGuess(c.Request.Context(), session.GuessRequest{
		SessionCode: c.Param("code"),
		PlayerID:    req.PlayerID,
		SongID:      req.SongID,
		Correct:     *req.Correct,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (a *API) completePlayer(c *gin.Context) {
	res, err := a.ss.CompletePlayer(c.Request.Context(), session.CompleteRequest{
		SessionCode: c.Param("code"),
		PlayerID:    c.Param("playerID"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (a *API) getLeaderboard(c *gin.Context) {
	ss, err := a.ss.View(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		SessionID: ss.SessionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, leaderboardViewOf(l))
}

func (a *API) topXP(c *gin.Context) {
	entries, err := a.ls.TopXP(c.Request.Context(), leaderboard.TopXPRequest{})
	if err != nil {
		respondError(c, err)
		return
	}

	view := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		view = append(view, gin.H{"user_id": e.UserID, "xp": e.XP})
	}
	c.JSON(http.StatusOK, gin.H{"entries": view})
}

func respondError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: internal error", "error", err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"code":    int(e.Code),
		"message": e.Message,
	})
}
