package domain

// ActorContext identifies who is performing an operation. It is passed
// explicitly into every component call instead of being read from ambient
// request state, so authorization is testable without a request environment.
type ActorContext struct {
	UserID     *int64
	Email      string
	Token      string // raw verification token presented by a guest, if any
	IsStaff    bool
	RemoteAddr string
	RequestID  string
}

// System is the actor for scheduler and worker driven mutations.
func System() ActorContext {
	return ActorContext{}
}

// Authenticated reports whether the actor carries a user identity.
func (a ActorContext) Authenticated() bool {
	return a.UserID != nil && *a.UserID != 0
}

// ActorID returns the acting user id for audit entries, nil for system actions.
func (a ActorContext) ActorID() *int64 {
	if a.Authenticated() {
		return a.UserID
	}
	return nil
}
