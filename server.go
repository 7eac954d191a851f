package main

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultTopN = 10
	maxTopN     = 100
	qrSize      = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// SetupRouter configures HTTP routes
func SetupRouter(hub *Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/ws", handleWebsocket(hub))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": hub.ClientCount(), "rooms": len(hub.rooms.List())})
	})
	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"connections":    hub.TotalConns(),
			"ledger_dropped": hub.writer.Dropped(),
			"rooms":          hub.rooms.Metrics(),
		})
	})
	r.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.rooms.List())
	})
	r.GET("/leaderboard", handleLeaderboard(hub))
	r.GET("/invite/:map", handleInvite(hub))

	if dir := hub.cfg.ClientDir; dir != "" {
		r.StaticFile("/", filepath.Join(dir, "index.html"))
		r.NoRoute(func(c *gin.Context) {
			c.Header("Cache-Control", "no-cache")
			c.File(filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path)))
		})
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		Log.Debugw("http", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}

func handleWebsocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !hub.CanAccept(ip) {
			c.String(http.StatusServiceUnavailable, "too many connections")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			Log.Warnw("upgrade error", "addr", ip, "err", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}

func handleLeaderboard(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := defaultTopN
		if s := c.Query("n"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
				return
			}
			n = min(v, maxTopN)
		}
		top, err := hub.ledger.Top(n)
		if err != nil {
			Log.Errorw("leaderboard query failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
			return
		}
		c.JSON(http.StatusOK, top)
	}
}

// handleInvite renders a QR code linking to a map
func handleInvite(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		mapID := c.Param("map")
		if _, err := ParseMapMode(mapID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		link := hub.cfg.PublicURL + "/?map=" + url.QueryEscape(mapID)
		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			Log.Errorw("qr encode failed", "map", mapID, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr unavailable"})
			return
		}
		c.Header("X-Invite-URL", link)
		c.Data(http.StatusOK, "image/png", png)
	}
}
