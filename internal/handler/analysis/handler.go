package analysis

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/humanplus/posture-console/internal/camera"
	"github.com/humanplus/posture-console/internal/handler"
	"github.com/humanplus/posture-console/internal/middleware"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/service/analysis"
	"github.com/humanplus/posture-console/pkg/httputil"
	"github.com/humanplus/posture-console/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type Session interface {
	Start(ctx context.Context, req *model.CreateVisitRequest) (*analysis.Snapshot, error)
	Stop(ctx context.Context) *analysis.Snapshot
	Reconnect(ctx context.Context) (*analysis.Snapshot, error)
	Snapshot() *analysis.Snapshot
}

// Feed is the source of live pose payloads.
type Feed interface {
	Subscribe() (<-chan *model.StreamPayload, func())
}

type Handler struct {
	session  Session
	feed     Feed
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(session Session, feed Feed, allowedOrigins []string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		session: session,
		feed:    feed,
		log:     log.With("analysis-relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/analysis")
	{
		g.GET("", h.GetSession)
		g.POST("/start", h.Start)
		g.POST("/stop", h.Stop)
		g.POST("/reconnect", h.Reconnect)
	}
}

// RegisterLive mounts the WebSocket relay. It is kept apart from the other
// routes because browsers cannot send an Authorization header on upgrade.
func (h *Handler) RegisterLive(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	r.GET("/analysis/live", append(mw, h.Live)...)
}

func (h *Handler) GetSession(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.session.Snapshot())
}

func (h *Handler) Start(c *gin.Context) {
	var req model.CreateVisitRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.OperatorID == "" {
		if u := middleware.CurrentUser(c); u != nil {
			req.OperatorID = u.UID
		}
	}

	snap, err := h.session.Start(requestContext(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, snap)
}

func (h *Handler) Stop(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.session.Stop(requestContext(c)))
}

func (h *Handler) Reconnect(c *gin.Context) {
	snap, err := h.session.Reconnect(requestContext(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, snap)
}

// Live upgrades to a WebSocket and relays the latest pose payload to the
// client as it arrives. Slow clients skip intermediate frames.
func (h *Handler) Live(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug("websocket upgrade failed", "error", err.Error())
		return
	}

	payloads, unsubscribe := h.feed.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, payloads, done)
}

// readPump drains client frames so control messages are processed, and
// signals done once the client goes away.
func (h *Handler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, payloads <-chan *model.StreamPayload, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case p := <-payloads:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(p); err != nil {
				h.log.Debug("relay write failed", "error", err.Error())
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func requestContext(c *gin.Context) context.Context {
	return camera.WithToken(c.Request.Context(), middleware.CurrentToken(c))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
