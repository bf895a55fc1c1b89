package domain

// Note represents an inbound note from the streaming API
type Note struct {
	ID     string   `json:"id"`
	UserID string   `json:"userId"`
	Text   string   `json:"text"`
	User   NoteUser `json:"user"`
}

// NoteUser represents the author metadata attached to a note
type NoteUser struct {
	Username string `json:"username"`
	Host     string `json:"host"` // empty for users on the local instance
	IsBot    bool   `json:"isBot"`
}

// IsLocal reports whether the author belongs to the local instance
func (n *Note) IsLocal() bool {
	return n.User.Host == ""
}
