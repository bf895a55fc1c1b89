package domain

// StatusConfirming is the only status a persisted conversation state carries.
// Presence of a state record means the user is awaiting a yes/no answer.
const StatusConfirming = "confirming"

// ConversationState represents one pending emoji proposal awaiting confirmation
type ConversationState struct {
	Status       string `json:"status"`
	FileID       string `json:"fileId"`
	Shortcode    string `json:"shortcode"`
	ReplyToID    string `json:"replyToId"`
	OriginalText string `json:"originalText"`
}
