package dto

import "time"

// InboundMessage is one raw message yielded by the mail source connector.
type InboundMessage struct {
	MessageID   string
	Mailbox     string
	Folder      string
	Subject     string
	Sender      string
	SenderName  string
	Recipient   string
	CcAddresses []string
	Date        time.Time
	BodyPlain   string
	BodyHTML    string
	Attachments []InboundAttachment
}

type InboundAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
