package worker

import (
	"maps"
	"sync"
)

// ClientSet 记录每个客户端（页面/标签页）当前由哪个版本控制。
// 空字符串表示客户端未受控，其请求直接走网络。
type ClientSet struct {
	mu      sync.Mutex
	clients map[string]string
}

// NewClientSet 创建空的客户端集合。
func NewClientSet() *ClientSet {
	return &ClientSet{clients: make(map[string]string)}
}

// Touch 返回客户端的控制版本；首次出现的客户端由 activeVersion 控制。
func (s *ClientSet) Touch(id, activeVersion string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version, ok := s.clients[id]; ok {
		return version
	}
	s.clients[id] = activeVersion
	return activeVersion
}

// Claim 让所有已知客户端改由 version 控制，返回受影响的客户端数量。
func (s *ClientSet) Claim(version string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for id, current := range s.clients {
		if current != version {
			s.clients[id] = version
			changed++
		}
	}
	return changed
}

// Release 移除客户端，返回它是否存在。
func (s *ClientSet) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return false
	}
	delete(s.clients, id)
	return true
}

// Count 统计由 version 控制的客户端数量。
func (s *ClientSet) Count(version string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, current := range s.clients {
		if current == version {
			n++
		}
	}
	return n
}

// Snapshot 返回客户端到版本的副本。
func (s *ClientSet) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.clients)
}
