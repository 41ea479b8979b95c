package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bjwdenbesten/Graphical/internal/config"
	"github.com/bjwdenbesten/Graphical/internal/hub"
	"github.com/bjwdenbesten/Graphical/internal/logger"
	"github.com/bjwdenbesten/Graphical/internal/mutex"
	"github.com/bjwdenbesten/Graphical/internal/party"
)

func setupHTTP(cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	store := party.NewRedisStore(infra.Redis.Client)
	locker := mutex.NewRedisMutex(infra.Redis.Client, mutex.Options{})
	rooms := hub.New()
	manager := party.NewManager(store, locker, rooms)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.ClientURL == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == cfg.ClientURL
		},
	}

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", map[string]any{"error": err.Error()})
			return
		}

		client := hub.NewClient(conn, manager)
		logger.Info("new connection", map[string]any{"conn": client.ID()})

		// Blocks until the connection is gone, keeping the request
		// context alive for in-flight handlers.
		client.Serve(c.Request.Context())
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.Redis.Close()
	}, nil
}
