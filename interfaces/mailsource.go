package interfaces

import (
	"context"
	"time"

	"github.com/craftworks/mailtriage/dto"
)

// MailSource is the pull-based mail connector. FetchSince yields every
// message in the folder with a date on or after since; calls across folders
// carry no ordering guarantee relative to each other.
type MailSource interface {
	FetchSince(ctx context.Context, folder string, since time.Time) ([]*dto.InboundMessage, error)
	Mailbox() string
}
