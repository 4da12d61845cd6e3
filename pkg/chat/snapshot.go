package chat

// Snapshot is an immutable copy of a Store's state. Version grows by one on every
// state change, so consumers receiving snapshots over several paths can drop stale ones.
type Snapshot struct {
	Version   uint64
	Messages  []Message
	Status    Status
	LastError string
}

// LastAssistant returns the most recent assistant message, if any.
func (s Snapshot) LastAssistant() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Empty reports whether the conversation has no messages yet.
func (s Snapshot) Empty() bool { return len(s.Messages) == 0 }
