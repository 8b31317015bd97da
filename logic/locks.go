package logic

import "sync"

// ChatLocks serializes engine and message-path operations per chat_id.
// Cascading deletes and step recomputation read-then-write the log and the
// tracker as a unit; different chats never contend. An entry is dropped when
// its last holder releases, so the table is bounded by in-flight chats.
type ChatLocks struct {
	mu    sync.Mutex
	locks map[string]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatLocks() *ChatLocks {
	return &ChatLocks{locks: make(map[string]*chatLock)}
}

// Lock acquires the chat's mutex and returns its unlock func.
func (c *ChatLocks) Lock(chatID string) func() {
	c.mu.Lock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &chatLock{}
		c.locks[chatID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, chatID)
		}
		c.mu.Unlock()
	}
}

func (c *ChatLocks) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
