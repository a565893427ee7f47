package script

// Line is one ordered element of the generated script. Ordering is
// significant: line i's audio occupies position i in every assembled
// artifact.
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Voice identities of the two hosts. These double as the synthesis voice
// names.
const (
	VoiceSarah = "sarah"
	VoiceTheo  = "theo"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatError struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error"`
}
