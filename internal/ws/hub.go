package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/emandor/mailsift/internal/ocr"
	"github.com/emandor/mailsift/internal/telemetry"
)

// WriteTimeout bounds one push to a client. A client that misses it is
// dropped from every room.
const WriteTimeout = 5 * time.Second

var (
	mu    sync.RWMutex
	rooms = map[string]map[*peer]struct{}{}
)

type jsonConn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
}

// peer serializes writes to one connection. A peer may sit in the rooms of
// several actions that broadcast at the same time.
type peer struct {
	wmu  sync.Mutex
	conn jsonConn
}

func (p *peer) send(v any) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return err
	}
	return p.conn.WriteJSON(v)
}

type Action string

const (
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

// RoomPrefix + action id is the room a client joins to follow one extraction.
const RoomPrefix = "harvest.room."

type Event string

const (
	EventProgress   Event = "harvest.event.progress"
	EventImageError Event = "harvest.event.image_error"
	EventCompleted  Event = "harvest.event.completed"
)

type PayloadEvent struct {
	Event    Event  `json:"event"`
	ActionID string `json:"action_id"`
	Data     any    `json:"data,omitempty"`
}

type ClientMessage struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
}

type ImageErrorPayload struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

func Room(actionID string) string { return RoomPrefix + actionID }

func HandleWS(c *websocket.Conn) {
	tlog := telemetry.L().With().Str("module", "ws").Logger()
	tlog.Info().Msg("ws_connected")
	p := &peer{conn: c}
	defer func() {
		drop(p)
		_ = c.Close()
		tlog.Info().Msg("ws_disconnected")
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		var cm ClientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			continue
		}

		switch cm.Action {
		case ActionJoin:
			joinRoom(p, cm.Room)
			tlog.Debug().Str("room", cm.Room).Msg("ws_join")
		case ActionLeave:
			leaveRoom(p, cm.Room)
			tlog.Debug().Str("room", cm.Room).Msg("ws_leave")
		}
	}
}

func joinRoom(p *peer, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	if rooms[room] == nil {
		rooms[room] = map[*peer]struct{}{}
	}
	rooms[room][p] = struct{}{}
	mu.Unlock()
}

func leaveRoom(p *peer, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	delete(rooms[room], p)
	if len(rooms[room]) == 0 {
		delete(rooms, room)
	}
	mu.Unlock()
}

// drop removes p from every room.
func drop(p *peer) {
	mu.Lock()
	for room := range rooms {
		delete(rooms[room], p)
		if len(rooms[room]) == 0 {
			delete(rooms, room)
		}
	}
	mu.Unlock()
}

func HasSubscribers(actionID string) bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(rooms[Room(actionID)]) > 0
}

func broadcast(actionID string, pl PayloadEvent) {
	mu.RLock()
	peers := make([]*peer, 0, len(rooms[Room(actionID)]))
	for p := range rooms[Room(actionID)] {
		peers = append(peers, p)
	}
	mu.RUnlock()

	for _, p := range peers {
		if err := p.send(pl); err != nil {
			log := telemetry.L()
			log.Warn().Err(err).Str("module", "ws").Str("action_id", actionID).Msg("ws_write_failed")
			drop(p)
		}
	}
}

// Notifier pushes extraction events to the action's room.
type Notifier struct{}

func (Notifier) Progress(actionID string, p ocr.Progress) {
	if !HasSubscribers(actionID) {
		return
	}
	broadcast(actionID, PayloadEvent{Event: EventProgress, ActionID: actionID, Data: p})
}

func (Notifier) ImageFailed(actionID string, e *ocr.ImageError) {
	if !HasSubscribers(actionID) {
		return
	}
	broadcast(actionID, PayloadEvent{
		Event:    EventImageError,
		ActionID: actionID,
		Data:     ImageErrorPayload{Filename: e.Filename, Error: e.Err.Error()},
	})
}

func (Notifier) Completed(actionID string, summary any) {
	if !HasSubscribers(actionID) {
		return
	}
	broadcast(actionID, PayloadEvent{Event: EventCompleted, ActionID: actionID, Data: summary})
}
