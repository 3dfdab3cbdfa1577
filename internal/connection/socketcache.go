package connection

import "sync"

// SocketCache mirrors the system-wide account to socket mapping, maintained
// from authority broadcasts. At most one live socket exists per account;
// Set replaces any previous mapping for the account so a racing eviction
// broadcast cannot leave two sockets recorded.
type SocketCache struct {
	mu sync.RWMutex

	socketIdByAccountId map[string]string
	accountIdBySocketId map[string]string
}

func NewSocketCache() *SocketCache {
	return &SocketCache{
		socketIdByAccountId: map[string]string{},
		accountIdBySocketId: map[string]string{},
	}
}

func (c *SocketCache) ForId(accountId string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.socketIdByAccountId[accountId]
}

func (c *SocketCache) ForSocketId(socketId string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accountIdBySocketId[socketId]
}

func (c *SocketCache) Set(accountId, socketId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.socketIdByAccountId[accountId]; ok {
		delete(c.accountIdBySocketId, old)
	}
	c.socketIdByAccountId[accountId] = socketId
	c.accountIdBySocketId[socketId] = accountId
}

func (c *SocketCache) ClearBySocketId(socketId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	accountId, ok := c.accountIdBySocketId[socketId]
	if !ok {
		return
	}
	delete(c.accountIdBySocketId, socketId)
	if c.socketIdByAccountId[accountId] == socketId {
		delete(c.socketIdByAccountId, accountId)
	}
}
