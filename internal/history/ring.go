// ABOUTME: Bounded, order-preserving message log for one conversation.
// ABOUTME: Head eviction keeps the newest MaxMessages entries in append order.

package history

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// MaxMessages is the per-conversation history bound. An append that would
// exceed it evicts from the head until exactly MaxMessages remain.
const MaxMessages = 20

// Message is a single role-tagged entry. Immutable once appended; append
// order is conversational order.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Ring is a bounded, append-ordered message log. It does no locking of its
// own: the owning session actor serializes every call.
type Ring struct {
	max      int
	messages []Message
}

// NewRing creates a ring bounded to max messages. Non-positive max falls
// back to MaxMessages.
func NewRing(max int) *Ring {
	if max <= 0 {
		max = MaxMessages
	}
	return &Ring{max: max}
}

// Append adds msg at the tail, evicting from the head when the bound is
// exceeded. Eviction is strictly positional: system-role entries are not
// exempt. Always succeeds.
func (r *Ring) Append(msg Message) {
	r.messages = append(r.messages, msg)
	if len(r.messages) > r.max {
		overflow := len(r.messages) - r.max
		r.messages = append(r.messages[:0], r.messages[overflow:]...)
	}
}

// Snapshot returns a copy of the current messages in append order. Later
// appends are never visible through the returned slice.
func (r *Ring) Snapshot() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Clear resets the ring to empty.
func (r *Ring) Clear() {
	r.messages = nil
}

// Len returns the number of messages currently held.
func (r *Ring) Len() int {
	return len(r.messages)
}
