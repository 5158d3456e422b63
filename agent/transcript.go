package agent

import "strings"

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return "System"
	}
}

// Turn is one entry of the transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ProblemPrefix introduces the problem statement in the opening user turn.
const ProblemPrefix = "Solve this problem step by step: "

// Transcript is the append-only conversation sent to the model on every
// cycle. The first two turns are always the system instructions and the
// problem statement.
type Transcript struct {
	turns []Turn
}

func NewTranscript(system, problem string) *Transcript {
	return &Transcript{turns: []Turn{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: ProblemPrefix + problem},
	}}
}

func (t *Transcript) AppendUser(content string) {
	t.turns = append(t.turns, Turn{Role: RoleUser, Content: content})
}

func (t *Transcript) AppendAssistant(content string) {
	t.turns = append(t.turns, Turn{Role: RoleAssistant, Content: content})
}

func (t *Transcript) Len() int {
	return len(t.turns)
}

// Turns returns a copy of every turn.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Text renders the prompt: the system instructions, a blank line, the problem
// statement, then one "User: ..." or "Assistant: ..." line per later turn.
func (t *Transcript) Text() string {
	var sb strings.Builder
	for i, turn := range t.turns {
		switch i {
		case 0:
			sb.WriteString(turn.Content)
		case 1:
			sb.WriteString("\n\n")
			sb.WriteString(turn.Content)
		default:
			sb.WriteString("\n")
			sb.WriteString(turn.Role.label())
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
		}
	}
	return sb.String()
}
