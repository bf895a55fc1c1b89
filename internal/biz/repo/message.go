package repo

import "context"

// UploadResult represents an uploaded drive file
type UploadResult struct {
	ID  string
	URL string
}

// MessageRepo is the Misskey REST interface used by the gateway
type MessageRepo interface {
	// Me returns the username of the bot's own account
	Me(ctx context.Context) (string, error)

	// CreateNote posts a note, optionally as a reply with attached files
	CreateNote(ctx context.Context, text, replyID string, fileIDs []string) error

	// UploadFile uploads image bytes to the drive under the given name
	UploadFile(ctx context.Context, data []byte, name string) (*UploadResult, error)

	// AddEmoji registers an uploaded file as a custom emoji.
	// Failure typically means the shortcode is already taken.
	AddEmoji(ctx context.Context, name, fileID string) error
}
