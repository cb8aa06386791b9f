package ports

import "time"

// Collection is the set of wired ports handed to the API layer.
type Collection struct {
	Orchestrator Orchestrator
	Passwords    PasswordGenerator
	Clock        func() time.Time
}
