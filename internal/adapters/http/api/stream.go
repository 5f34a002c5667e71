package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/trialstats/internal/adapters/repository"
	service "github.com/okian/trialstats/internal/app"
	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/pkg/logger"
	"github.com/okian/trialstats/pkg/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for any frame before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageBytes bounds a single client message.
	maxMessageBytes = 4096
)

// streamMessage is one client frame: a query to predict, a history reload,
// or both.
type streamMessage struct {
	Query    *model.Query `json:"query,omitempty"`
	K        int          `json:"k,omitempty"`
	Extended *bool        `json:"extended,omitempty"`
	Reload   bool         `json:"reload,omitempty"`
}

// reloadReply acknowledges a reload without a query.
type reloadReply struct {
	Status  string `json:"status"`
	Samples int    `json:"samples"`
}

// StreamHandler serves live predictions over a websocket. The history is
// loaded once per connection so every slider tick is answered without a
// store round trip.
type StreamHandler struct {
	deps     AnalysisDependencies
	log      logger.Logger
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps AnalysisDependencies, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin checks belong to the reverse proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandlePredictStream handles GET /ws/predict?track=&character= requests.
func (h *StreamHandler) HandlePredictStream(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}
	defer conn.Close()

	metrics.IncWebsocketClients()
	defer metrics.DecWebsocketClients()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.ping(ctx, conn)

	h.serve(ctx, conn, f)
}

func (h *StreamHandler) serve(ctx context.Context, conn *websocket.Conn, f repository.Filter) {
	history, err := h.deps.ListRuns(ctx, f)
	if err != nil {
		h.reply(conn, errorReply(err))
		return
	}

	conn.SetReadLimit(maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug(ctx, "prediction stream closed", logger.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if !h.reply(conn, errorReply(WrapKind("api.stream", ErrBadRequest, err))) {
				return
			}
			continue
		}

		if msg.Reload {
			if history, err = h.deps.ListRuns(ctx, f); err != nil {
				h.reply(conn, errorReply(err))
				return
			}
		}

		var out any
		switch {
		case msg.Query != nil && msg.K < 0:
			out = errorReply(WrapKind("api.stream", ErrBadRequest, errNegativeK))
		case msg.Query != nil:
			out = h.deps.PredictHistory(ctx, history, service.PredictRequest{
				Query:    *msg.Query,
				K:        msg.K,
				Extended: msg.Extended,
			})
		case msg.Reload:
			out = reloadReply{Status: "reloaded", Samples: len(history)}
		default:
			out = errorReply(WrapKind("api.stream", ErrBadRequest, errEmptyMessage))
		}
		if !h.reply(conn, out) {
			return
		}
	}
}

// reply writes v as one text frame and reports whether the connection is
// still usable.
func (h *StreamHandler) reply(conn *websocket.Conn, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v) == nil
}

// ping keeps idle connections alive. WriteControl may run concurrently with
// the reader's writes.
func (h *StreamHandler) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func errorReply(err error) errorResponse {
	_, code := classify(err)
	return errorResponse{Code: code, Message: err.Error()}
}
