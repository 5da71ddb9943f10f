// Package session keeps the per-conversation state: active project, active
// agent session handle and selected model. State lives for the process
// lifetime only.
package session

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// Conversation is the state of one chat conversation.
//
// Continuation is true iff AgentSession is non-empty.
type Conversation struct {
	ID           string
	Project      string
	ProjectPath  string
	AgentSession string
	Continuation bool
	Model        string
	UpdatedAt    time.Time
}

// HasProject reports whether a project is selected.
func (c Conversation) HasProject() bool {
	return c.ProjectPath != ""
}

type shard struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
	locks map[string]*sync.Mutex
}

// Store is a concurrency-safe table of conversations keyed by id.
type Store struct {
	defaultModel string
	shards       [shardCount]*shard
}

// NewStore creates a store whose new conversations start with defaultModel.
func NewStore(defaultModel string) *Store {
	m := &Store{defaultModel: defaultModel}
	for i := range m.shards {
		m.shards[i] = &shard{
			convs: make(map[string]*Conversation),
			locks: make(map[string]*sync.Mutex),
		}
	}
	return m
}

func (m *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return m.shards[h.Sum32()%shardCount]
}

// getLocked returns the conversation, creating it if needed.
// The shard write lock must be held.
func (m *Store) getLocked(s *shard, id string) *Conversation {
	c, ok := s.convs[id]
	if !ok {
		c = &Conversation{ID: id, Model: m.defaultModel, UpdatedAt: time.Now()}
		s.convs[id] = c
	}
	return c
}

// update applies fn to the conversation under the shard lock and returns a copy.
func (m *Store) update(id string, fn func(c *Conversation)) Conversation {
	s := m.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	c := m.getLocked(s, id)
	fn(c)
	c.UpdatedAt = time.Now()
	return *c
}

// GetOrCreate returns the conversation, creating it with empty fields and the
// default model on first reference.
func (m *Store) GetOrCreate(id string) Conversation {
	s := m.shardFor(id)
	s.mu.RLock()
	if c, ok := s.convs[id]; ok {
		out := *c
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return *m.getLocked(s, id)
}

// SetProject switches the active project and always starts a fresh agent
// session, even when the project is unchanged.
func (m *Store) SetProject(id, name, path string) Conversation {
	return m.update(id, func(c *Conversation) {
		c.Project = name
		c.ProjectPath = path
		c.AgentSession = ""
		c.Continuation = false
	})
}

// ClearSession drops the agent session handle and keeps the project.
func (m *Store) ClearSession(id string) Conversation {
	return m.update(id, func(c *Conversation) {
		c.AgentSession = ""
		c.Continuation = false
	})
}

// RecordAgentSession stores the handle returned by a run. An empty handle
// leaves the conversation untouched.
func (m *Store) RecordAgentSession(id, handle string) Conversation {
	return m.update(id, func(c *Conversation) {
		if handle == "" {
			return
		}
		c.AgentSession = handle
		c.Continuation = true
	})
}

// SetModel selects the model for subsequent runs. Empty restores the default.
func (m *Store) SetModel(id, model string) Conversation {
	return m.update(id, func(c *Conversation) {
		if model == "" {
			model = m.defaultModel
		}
		c.Model = model
	})
}

// Lock serializes work on one conversation. The returned func releases it.
func (m *Store) Lock(id string) (unlock func()) {
	s := m.shardFor(id)
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Count returns the number of known conversations.
func (m *Store) Count() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.convs)
		s.mu.RUnlock()
	}
	return n
}
