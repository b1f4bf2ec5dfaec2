package server

import (
	"net/http"

	"sketch-judge/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type roomURI struct {
	Code string `uri:"code" binding:"required,roomcode"`
}

type suggestionsQuery struct {
	Count    int    `form:"count" binding:"omitempty,min=1,max=10"`
	Category string `form:"category" binding:"omitempty,category"`
}

var suggestionsMessages = bindMessages{
	"Count":    {"min": "count must be between 1 and 10", "max": "count must be between 1 and 10"},
	"Category": {"category": "category must be letters, digits, dashes or underscores"},
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	if !s.enforceRateLimit(c) {
		return
	}
	code := s.CreateRoom(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"roomCode": code})
}

// handleListRooms pages through live rooms, oldest first. open=true keeps only rooms still accepting new players.
func (s *Server) handleListRooms(c *gin.Context) {
	page, perPage := parsePagination(c, defaultRoomsPerPage, maxRoomsPerPage)
	rooms := s.rooms.Summaries()
	if c.Query("open") == "true" {
		joinable := rooms[:0]
		for _, room := range rooms {
			if !room.GameStarted && room.Participants < s.cfg.MaxParticipants {
				joinable = append(joinable, room)
			}
		}
		rooms = joinable
	}
	info, start, end := paginate(page, perPage, len(rooms))
	c.JSON(http.StatusOK, gin.H{"rooms": rooms[start:end], "pagination": info})
}

func (s *Server) handleCheckRoom(c *gin.Context) {
	var uri roomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusOK, RoomStatus{})
		return
	}
	c.JSON(http.StatusOK, s.CheckRoom(uri.Code))
}

func (s *Server) handlePromptSuggestions(c *gin.Context) {
	var query suggestionsQuery
	if !bindQuery(c, &query, suggestionsMessages, "invalid suggestions request") {
		return
	}
	category, _ := validateCategory(query.Category)
	c.JSON(http.StatusOK, gin.H{"prompts": s.promptSuggestions(category, query.Count)})
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok", "rooms": s.rooms.Len()}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			log.Warn().Err(err).Msg("health check database ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleHome(c *gin.Context) {
	summaries := s.rooms.Summaries()
	rooms := make([]web.RoomSummary, 0, len(summaries))
	for _, summary := range summaries {
		rooms = append(rooms, web.RoomSummary{
			Code:         summary.Code,
			Phase:        summary.Phase,
			GameStarted:  summary.GameStarted,
			Participants: summary.Participants,
			Capacity:     s.cfg.MaxParticipants,
			CreatedAt:    summary.CreatedAt,
		})
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := web.Home(rooms, s.now()).Render(c.Request.Context(), c.Writer); err != nil {
		log.Error().Err(err).Msg("render home failed")
	}
}
