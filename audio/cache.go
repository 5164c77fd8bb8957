package audio

import "sync"

// BufferCache holds completely-fetched utterances, keyed by identity.
// It is owned by the playback session's coordinator and cleared when
// the session ends; it is not a process-wide singleton.
type BufferCache struct {
	mu sync.Mutex
	m  map[string][]*Chunk
}

func NewBufferCache() *BufferCache {
	return &BufferCache{m: make(map[string][]*Chunk)}
}

func (c *BufferCache) Get(identity string) ([]*Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunks, ok := c.m[identity]
	return chunks, ok
}

// Put commits a complete utterance. Partial buffers never go in here:
// the player only commits after its fetch finished cleanly.
func (c *BufferCache) Put(identity string, chunks []*Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[identity] = chunks
}

func (c *BufferCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string][]*Chunk)
}

func (c *BufferCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
