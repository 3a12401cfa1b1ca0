package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizquest/internal/app"
	"quizquest/internal/auth"
)

const defaultTickInterval = time.Second

type WSHandler struct {
	service  *app.QuizService
	history  *app.HistoryService
	log      *zap.Logger
	tick     time.Duration
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, history *app.HistoryService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		history: history,
		log:     log,
		tick:    defaultTickInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Choice string `json:"choice"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades the request and runs one play session over the socket.
// The countdown ticks server-side; the client only selects, advances and
// restarts.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.Atoi(r.URL.Query().Get("quizId"))
	if err != nil {
		http.Error(w, "missing or invalid quizId", http.StatusBadRequest)
		return
	}
	userID, _ := auth.UserID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, stop := context.WithCancel(r.Context())
	defer stop()

	session, err := h.service.Start(ctx, userID, quizID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	sessionID := session.ID()
	defer h.service.End(context.WithoutCancel(ctx), sessionID)

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	defer cancel()

	feed := app.NewDashboardFeed(h.history)
	defer feed.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	timerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", zap.String("session_id", sessionID), zap.Error(err))
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: session.Snapshot()}

	go func() {
		defer close(timerDone)
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		if err := h.service.RunTimer(ctx, sessionID, ticker.C); err != nil && ctx.Err() == nil {
			h.log.Warn("session timer stopped", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	go func() {
		defer close(updatesDone)
		refreshed := false
		forward := func(msg outboundMessage[any]) bool {
			select {
			case send <- msg:
				return true
			case <-closeSignals:
				return false
			}
		}
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if !forward(outboundMessage[any]{Type: "state", Payload: snap}) {
					return
				}
				// One dashboard refresh per finished play-through; restart re-arms it.
				finished := snap.Phase == app.PhaseFinished.String()
				if finished && !refreshed {
					feed.Refresh(ctx, userID)
				}
				refreshed = finished
			case dash, ok := <-feed.Updates():
				if !ok {
					return
				}
				if !forward(outboundMessage[any]{Type: "dashboard", Payload: dash}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.handle(ctx, sessionID, inbound); !ok {
			send <- msg
		}
	}

	stop()
	<-timerDone
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle applies one client event. State changes reach the client through
// the subscription, so only failures produce a direct reply.
func (h *WSHandler) handle(ctx context.Context, sessionID string, inbound inboundMessage) (outboundMessage[any], bool) {
	var err error
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			return errorMessage("invalid select payload"), false
		}
		_, err = h.service.Select(ctx, sessionID, payload.Choice)
	case "advance":
		_, err = h.service.Advance(ctx, sessionID)
	case "restart":
		_, err = h.service.Restart(ctx, sessionID)
	default:
		return errorMessage("unsupported message type"), false
	}
	if err != nil {
		return errorMessage(err.Error()), false
	}
	return outboundMessage[any]{}, true
}
