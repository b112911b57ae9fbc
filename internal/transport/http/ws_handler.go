package http

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizzy-service/internal/domain"
	"quizzy-service/internal/game"
)

// WSHandler exposes the live-game message contract over websockets: one
// endpoint for the controlling host, one for players joining by PIN.
type WSHandler struct {
	service           *game.GameService
	log               *zap.Logger
	upgrader          websocket.Upgrader
	defaultMaxPlayers int
}

func NewWSHandler(service *game.GameService, log *zap.Logger, defaultMaxPlayers int) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service:           service,
		log:               log,
		defaultMaxPlayers: defaultMaxPlayers,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type answerPayload struct {
	AnswerIndex int      `json:"answerIndex"`
	ElapsedMs   int      `json:"elapsedMs"`
	Modifiers   []string `json:"modifiers"`
}

type kickPayload struct {
	PlayerID string `json:"playerId"`
}

type gameCreatedPayload struct {
	Pin string `json:"pin"`
}

type joinedPayload struct {
	Pin      string `json:"pin"`
	PlayerID string `json:"playerId"`
}

// ServeHost opens a session for a quiz and drives it from host commands:
// start, advance, next, end, kick. Host disconnect tears the session down.
func (h *WSHandler) ServeHost(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	maxPlayers := h.defaultMaxPlayers
	if raw := r.URL.Query().Get("maxPlayers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid maxPlayers", http.StatusBadRequest)
			return
		}
		maxPlayers = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := newConnID()
	session, err := h.service.HostGame(r.Context(), quizID, connID, maxPlayers)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	pin := session.Pin()

	updates, cancel, err := h.service.Subscribe(pin, domain.RoleHost)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.HostDisconnected(r.Context(), pin, connID)

	pipe := h.startPipe(conn, updates)
	defer pipe.shutdown()

	pipe.send <- outboundMessage[any]{Type: "game-created", Payload: gameCreatedPayload{Pin: pin}}
	pipe.send <- outboundMessage[any]{Type: "state", Payload: session.Snapshot()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		var actErr error
		switch inbound.Type {
		case "start":
			actErr = h.service.StartGame(r.Context(), pin, connID)
		case "advance":
			actErr = h.service.AdvanceQuestion(r.Context(), pin, connID)
		case "next":
			actErr = h.service.NextQuestion(r.Context(), pin, connID)
		case "end":
			actErr = h.service.EndGame(r.Context(), pin, connID)
		case "kick":
			var payload kickPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				pipe.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid kick payload"}}
				continue
			}
			actErr = h.service.KickPlayer(r.Context(), pin, connID, payload.PlayerID)
		default:
			pipe.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
			continue
		}
		if actErr != nil {
			pipe.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: actErr.Error()}}
		}
	}
}

// ServePlay joins a player into a session by PIN and relays their answers
// and modifier requests. Acks are private to this connection; room events
// arrive through the subscription.
func (h *WSHandler) ServePlay(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	nickname := r.URL.Query().Get("name")
	if pin == "" || nickname == "" {
		http.Error(w, "missing pin or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := newConnID()
	playerID, snap, err := h.service.JoinGame(r.Context(), pin, nickname, connID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(pin, domain.RolePlayer)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.LeaveGame(r.Context(), pin, playerID)

	pipe := h.startPipe(conn, updates)
	defer pipe.shutdown()

	pipe.send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{Pin: pin, PlayerID: playerID}}
	pipe.send <- outboundMessage[any]{Type: "state", Payload: snap}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				pipe.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			ack, err := h.service.SubmitAnswer(r.Context(), pin, playerID, payload.AnswerIndex, payload.ElapsedMs, payload.Modifiers)
			if err != nil {
				pipe.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			pipe.send <- outboundMessage[any]{Type: "answer-ack", Payload: ack}
		case "fifty-fifty":
			options, err := h.service.UseFiftyFifty(r.Context(), pin, playerID)
			if err != nil {
				pipe.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			pipe.send <- outboundMessage[any]{Type: "fifty-fifty-options", Payload: domain.FiftyFiftyOptions{Options: options}}
		default:
			pipe.send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

// wsPipe serializes all writes to one connection through a single writer
// goroutine and pumps room events into the same channel.
type wsPipe struct {
	send         chan outboundMessage[any]
	closeSignals chan struct{}
	writerDone   chan struct{}
	updatesDone  chan struct{}
}

func (h *WSHandler) startPipe(conn *websocket.Conn, updates <-chan domain.Event) *wsPipe {
	p := &wsPipe{
		send:         make(chan outboundMessage[any], 16),
		closeSignals: make(chan struct{}),
		writerDone:   make(chan struct{}),
		updatesDone:  make(chan struct{}),
	}

	go func() {
		defer close(p.writerDone)
		for msg := range p.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(p.updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case p.send <- outboundMessage[any]{Type: ev.Type, Payload: ev.Payload}:
				case <-p.closeSignals:
					return
				}
			case <-p.closeSignals:
				return
			}
		}
	}()

	return p
}

func (p *wsPipe) shutdown() {
	close(p.closeSignals)
	<-p.updatesDone
	close(p.send)
	<-p.writerDone
}

const connIDCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

func newConnID() string {
	b := make([]byte, 12)
	for i := range b {
		b[i] = connIDCharset[rand.Intn(len(connIDCharset))]
	}
	return string(b)
}
