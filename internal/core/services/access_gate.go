package services

import (
	"sort"
	"sync"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
)

// AccessGate decides who may submit playback requests. Owners are always
// privileged and cannot be removed from the privileged set.
type AccessGate struct {
	mu         sync.RWMutex
	mode       domain.AccessMode
	owners     map[domain.UserID]struct{}
	privileged map[domain.UserID]struct{}
}

func NewAccessGate(mode domain.AccessMode, owners, privileged []domain.UserID) ports.AccessGate {
	if !mode.Valid() {
		mode = domain.AccessGlobal
	}
	g := &AccessGate{
		mode:       mode,
		owners:     make(map[domain.UserID]struct{}),
		privileged: make(map[domain.UserID]struct{}),
	}
	for _, id := range owners {
		g.owners[id] = struct{}{}
		g.privileged[id] = struct{}{}
	}
	for _, id := range privileged {
		g.privileged[id] = struct{}{}
	}
	return g
}

func (g *AccessGate) CanSubmit(caller domain.UserID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.mode == domain.AccessGlobal {
		return true
	}
	_, ok := g.privileged[caller]
	return ok
}

func (g *AccessGate) Mode() domain.AccessMode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mode
}

// ToggleMode flips between global and restricted and returns the new mode.
func (g *AccessGate) ToggleMode() domain.AccessMode {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = g.mode.Toggled()
	return g.mode
}

func (g *AccessGate) RoleOf(user domain.UserID) domain.Role {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.owners[user]; ok {
		return domain.RoleOwner
	}
	if _, ok := g.privileged[user]; ok {
		return domain.RoleSudo
	}
	return domain.RoleMember
}

// AddPrivileged returns false when the user already was privileged.
func (g *AccessGate) AddPrivileged(user domain.UserID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.privileged[user]; ok {
		return false
	}
	g.privileged[user] = struct{}{}
	return true
}

// RemovePrivileged returns false when the user was not privileged or is an owner.
func (g *AccessGate) RemovePrivileged(user domain.UserID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.owners[user]; ok {
		return false
	}
	if _, ok := g.privileged[user]; !ok {
		return false
	}
	delete(g.privileged, user)
	return true
}

func (g *AccessGate) AddOwner(user domain.UserID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.owners[user] = struct{}{}
	g.privileged[user] = struct{}{}
}

// Privileged returns the privileged users in ascending order.
func (g *AccessGate) Privileged() []domain.UserID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]domain.UserID, 0, len(g.privileged))
	for id := range g.privileged {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
