package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"sketch-judge/internal/codes"
	"sketch-judge/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Server struct {
	rooms    *Registry
	db       *gorm.DB
	history  *historyWriter
	gateway  *gateway
	cfg      config.Config
	limiter  *rateLimiter
	upgrader *websocket.Upgrader
	timersMu sync.Mutex
	timers   map[string]*roomTimer
	timerGen uint64
	after    afterFunc
	now      func() time.Time
}

// New builds a server. A nil conn disables history; a nil ledger keeps issued room codes in memory.
func New(conn *gorm.DB, ledger codes.Ledger, cfg config.Config) *Server {
	s := &Server{
		rooms: NewRegistry(ledger, cfg.RoomCodeLength, roomSettings{
			MaxParticipants: cfg.MaxParticipants,
			CountdownTicks:  cfg.CountdownTicks,
			MaxAwardPoints:  cfg.MaxAwardPoints,
			MaxDrawingBytes: cfg.MaxDrawingBytes,
		}),
		db:       conn,
		history:  newHistoryWriter(conn),
		gateway:  newGateway(),
		cfg:      cfg,
		limiter:  newRateLimiter(cfg.CreateRoomPerMinute),
		upgrader: newUpgrader(cfg.AllowedOrigins),
		timers:   make(map[string]*roomTimer),
		after:    realAfter,
		now:      timeNowUTC,
	}
	s.rooms.onDestroy = s.roomDestroyed
	return s
}

func (s *Server) Rooms() *Registry {
	return s.rooms
}

func (s *Server) Handler() http.Handler {
	registerValidators()
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if len(s.cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: s.cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{"Content-Type", "Origin"},
			MaxAge:       12 * time.Hour,
		}))
	}
	router.GET("/", s.handleHome)
	router.GET("/healthz", s.handleHealth)
	router.GET("/api/rooms", s.handleListRooms)
	router.POST("/api/rooms", s.handleCreateRoom)
	router.GET("/api/rooms/:code", s.handleCheckRoom)
	router.GET("/api/prompts/suggestions", s.handlePromptSuggestions)
	router.GET("/ws", s.handleWebsocket)
	router.GET("/ws/rooms/:code", s.handleWebsocket)
	return router
}

// CreateRoom opens a new room and returns its code.
func (s *Server) CreateRoom(ctx context.Context) string {
	room := s.rooms.Create(ctx)
	s.history.record(historyEntry{Kind: historyRoomCreated, Room: room.Code, At: room.CreatedAt})
	log.Info().Str("room", room.Code).Msg("room created")
	return room.Code
}

func (s *Server) CheckRoom(code string) RoomStatus {
	return s.rooms.Check(code)
}

func (s *Server) DestroyRoom(code string) {
	s.rooms.Destroy(normalizeRoomCode(code))
}

// StartJanitor destroys idle rooms until ctx is done.
func (s *Server) StartJanitor(ctx context.Context) {
	ttl := time.Duration(s.cfg.EmptyRoomTTLSeconds) * time.Second
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if expired := s.rooms.SweepEmpty(s.now(), ttl); len(expired) > 0 {
					log.Info().Strs("rooms", expired).Msg("idle rooms closed")
				}
			}
		}
	}()
}

// Close tears down every live room, then stops the history writer once it has flushed.
func (s *Server) Close() {
	if closed := s.rooms.DestroyAll("server_shutdown"); len(closed) > 0 {
		log.Info().Strs("rooms", closed).Msg("rooms closed for shutdown")
	}
	s.history.Close()
}

func (s *Server) roomDestroyed(room *Room) {
	s.cancelRoomTimers(room.Code)
	reason := room.closeReason
	if reason == "" {
		reason = "room_closed"
	}
	s.history.record(historyEntry{Kind: historyRoomClosed, Room: room.Code, Reason: reason})
	log.Info().Str("room", room.Code).Str("reason", reason).Msg("room destroyed")
}
