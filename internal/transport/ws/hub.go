package ws

import (
	"sync"
)

type Conn interface {
	Send(ev Event) error
}

// Hub — мультиплексор комнат: одно соединение может состоять в нескольких
// комнатах любого вида (канал, диалог, тред, воркспейс). Комната существует
// только как ключ: создаётся первым Join, исчезает с последним Leave.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // roomID -> set of connections
	conns map[Conn]map[string]struct{} // обратный индекс для LeaveAll
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Conn]struct{}),
		conns: make(map[Conn]map[string]struct{}),
	}
}

// Join идемпотентен: повторная подписка — no-op.
func (h *Hub) Join(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[roomID]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[roomID] = rs
	}
	rs[c] = struct{}{}

	cs, ok := h.conns[c]
	if !ok {
		cs = make(map[string]struct{})
		h.conns[c] = cs
	}
	cs[roomID] = struct{}{}
}

// Leave не-участника — no-op.
func (h *Hub) Leave(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(roomID, c)
}

// LeaveAll снимает соединение со всех комнат; вызывается на disconnect.
func (h *Hub) LeaveAll(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range h.conns[c] {
		h.leaveLocked(roomID, c)
	}
}

func (h *Hub) leaveLocked(roomID string, c Conn) {
	if rs, ok := h.rooms[roomID]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if cs, ok := h.conns[c]; ok {
		delete(cs, roomID)
		if len(cs) == 0 {
			delete(h.conns, c)
		}
	}
}

// Broadcast доставляет событие текущему набору подписчиков комнаты,
// включая отправителя: сервер-подтверждённое эхо каноничнее локальной копии.
func (h *Hub) Broadcast(roomID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[roomID]; ok {
		for c := range rs {
			_ = c.Send(ev) // best-effort
		}
	}
}
