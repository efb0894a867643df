package ws

import (
	"sync"
	"time"

	"github.com/cwrk-planet/fanout-service/internal/domain"

	"github.com/gorilla/websocket"
)

type wsConn struct {
	conn *websocket.Conn
	user *domain.User

	sendMu chan struct{}
	closed chan struct{}

	// presence-состояние, которым владеет соединение: выставляется только
	// обработчиками join/leave-workspace, читается очисткой на disconnect.
	presenceMu sync.Mutex
	workspace  string
	entry      *domain.PresenceEntry
}

func newWsConn(c *websocket.Conn, user *domain.User) *wsConn {
	return &wsConn{
		conn:   c,
		user:   user,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(ev Event) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(ev)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) setPresence(workspaceID string, entry domain.PresenceEntry) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()
	c.workspace = workspaceID
	c.entry = &entry
}

// dropPresence сбрасывает записанное состояние, только если оно совпадает с
// явным leave-workspace — чтобы disconnect-очистка не сработала второй раз.
func (c *wsConn) dropPresence(workspaceID string, entry domain.PresenceEntry) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()
	if c.workspace == workspaceID && c.entry != nil && *c.entry == entry {
		c.workspace, c.entry = "", nil
	}
}

// clearPresence отдаёт записанное состояние ровно один раз: повторный вызов
// (leave после disconnect или наоборот) ничего не вернёт.
func (c *wsConn) clearPresence() (string, *domain.PresenceEntry) {
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()
	ws, entry := c.workspace, c.entry
	c.workspace, c.entry = "", nil
	return ws, entry
}
