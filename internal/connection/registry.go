package connection

import (
	"log/slog"
	"sync"
)

// Conn is the transport-level handle for one live client connection.
type Conn interface {
	Close() error
}

// ConnectionInformation partitions the known account/socket pairs into
// locally live connections and stale mappings whose connection is gone and
// should be disconnected system-wide.
type ConnectionInformation struct {
	ConnectedSocketsByAccountId map[string]Conn
	DisconnectableSocketIds     []string
}

// Registry tracks this transport worker's live sessions: the socket to
// account mapping plus the raw connections still awaiting their handshake.
// It is process-local state; cross-process visibility goes through the bus.
type Registry struct {
	mu sync.Mutex

	raw                 map[Conn]struct{}
	connsBySocketId     map[string]Conn
	accountIdBySocketId map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		raw:                 map[Conn]struct{}{},
		connsBySocketId:     map[string]Conn{},
		accountIdBySocketId: map[string]string{},
	}
}

// Track records a raw connection that has not completed its handshake.
func (r *Registry) Track(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw[conn] = struct{}{}
}

func (r *Registry) Untrack(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.raw, conn)
}

// Connect records a handshaken socket's account mapping and its connection.
func (r *Registry) Connect(socketId, accountId string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.raw, conn)
	r.connsBySocketId[socketId] = conn
	r.accountIdBySocketId[socketId] = accountId
}

// Disconnect removes the mapping if present. A connection still resident for
// that socket id is forcibly torn down.
func (r *Registry) Disconnect(socketId string) {
	r.mu.Lock()
	conn, live := r.connsBySocketId[socketId]
	delete(r.connsBySocketId, socketId)
	delete(r.accountIdBySocketId, socketId)
	r.mu.Unlock()

	if live {
		slog.Warn("forcefully disconnecting socket", "socket_id", socketId)
		_ = conn.Close()
	}
}

// ForSocket returns the account id mapped to the socket, or empty.
func (r *Registry) ForSocket(socketId string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accountIdBySocketId[socketId]
}

// ConnectionInformation reconciles the mapping against the connections that
// are actually resident, after a worker-local crash of part of its state.
func (r *Registry) ConnectionInformation() ConnectionInformation {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := ConnectionInformation{
		ConnectedSocketsByAccountId: map[string]Conn{},
	}
	for socketId, accountId := range r.accountIdBySocketId {
		conn, ok := r.connsBySocketId[socketId]
		if !ok {
			info.DisconnectableSocketIds = append(info.DisconnectableSocketIds, socketId)
			continue
		}
		info.ConnectedSocketsByAccountId[accountId] = conn
	}
	return info
}

// CloseAll tears down every tracked connection, raw and handshaken.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.raw)+len(r.connsBySocketId))
	for conn := range r.raw {
		conns = append(conns, conn)
	}
	for _, conn := range r.connsBySocketId {
		conns = append(conns, conn)
	}
	r.raw = map[Conn]struct{}{}
	r.connsBySocketId = map[string]Conn{}
	r.accountIdBySocketId = map[string]string{}
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
