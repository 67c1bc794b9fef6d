package session

// Guard is the cancellation primitive: stages never receive an explicit
// cancel signal, they ask the guard whether their token is still the active
// one and drop work when it is not.
type Guard struct {
	registry *Registry
}

func NewGuard(registry *Registry) *Guard {
	return &Guard{registry: registry}
}

// SetActive unconditionally makes token the session's active token.
func (g *Guard) SetActive(sessionID string, token Token) {
	g.registry.SetToken(sessionID, token)
}

// IsActive reports whether token is still the session's active token. An
// unknown session is never active.
func (g *Guard) IsActive(sessionID string, token Token) bool {
	active, ok := g.registry.ActiveToken(sessionID)
	if !ok {
		return false
	}
	return active == token
}
