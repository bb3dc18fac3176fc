package match

import "sync"

// Presence tracks who is on the game server right now and under what
// name. It is fed from join/active/leave events and backs the live
// name/activity lookups the processor and query service need, so the
// core never reaches into host state directly.
type Presence struct {
	mu     sync.RWMutex
	online map[string]string // steamID -> display name
}

func NewPresence() *Presence {
	return &Presence{online: make(map[string]string)}
}

func (p *Presence) Track(steamID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[steamID] = name
}

func (p *Presence) Forget(steamID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, steamID)
}

// ResolveName implements rating.Directory.
func (p *Presence) ResolveName(steamID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	name, ok := p.online[steamID]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// IsActive implements rating.Directory.
func (p *Presence) IsActive(steamID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[steamID]
	return ok
}
