package mailsource

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/mail"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/internal/utils"
)

const (
	dialTimeout  = 30 * time.Second
	fetchTimeout = 30 * time.Second
)

// imapSource fetches messages over IMAP. Connections are per-call: each
// FetchSince dials, reads one folder and logs out, which keeps the connector
// stateless across cron runs.
type imapSource struct {
	cfg *config.IMAPConfig
	log logger.Logger
}

func NewIMAPSource(cfg *config.IMAPConfig, log logger.Logger) interfaces.MailSource {
	return &imapSource{
		cfg: cfg,
		log: log,
	}
}

func (s *imapSource) Mailbox() string {
	return s.cfg.Username
}

func (s *imapSource) FetchSince(ctx context.Context, folder string, since time.Time) ([]*dto.InboundMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapSource.FetchSince")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("folder", folder)
	span.SetTag("since", since.Format(time.RFC3339))

	c, err := s.connect(ctx, span)
	if err != nil {
		return nil, err
	}
	defer s.logout(c)

	if _, err := c.Select(folder, true); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to select folder %s", folder)
	}

	// IMAP SINCE has day granularity; messages earlier the same day come
	// back too and are filtered below.
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	seqNums, err := c.Search(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "search failed in folder %s", folder)
	}
	span.SetTag("matched", len(seqNums))

	if len(seqNums) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	results := make([]*dto.InboundMessage, 0, len(seqNums))
	for msg := range messages {
		inbound, err := s.convertMessage(msg, folder, section)
		if err != nil {
			s.log.Warnf("skipping unparsable message in %s: %v", folder, err)
			continue
		}
		if inbound.Date.Before(since) {
			continue
		}
		results = append(results, inbound)
	}

	if err := <-done; err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "fetch failed in folder %s", folder)
	}

	span.SetTag("fetched", len(results))
	return results, nil
}

func (s *imapSource) connect(ctx context.Context, span opentracing.Span) (*client.Client, error) {
	serverAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	span.SetTag("server", serverAddr)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: dialTimeout,
	}
	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
	}

	c, err := client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to connect to %s", serverAddr)
	}

	c.Timeout = fetchTimeout
	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to login as %s", s.cfg.Username)
	}

	return c, nil
}

func (s *imapSource) logout(c *client.Client) {
	c.Timeout = 5 * time.Second
	if err := c.Logout(); err != nil {
		s.log.Warnf("imap logout failed: %v", err)
	}
}

func (s *imapSource) convertMessage(msg *imap.Message, folder string, section *imap.BodySectionName) (*dto.InboundMessage, error) {
	literal := msg.GetBody(section)
	if literal == nil {
		return nil, errors.New("message has no body section")
	}
	raw, err := io.ReadAll(literal)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read message body")
	}

	return parseRawMessage(raw, s.cfg.Username, folder)
}

// parseRawMessage turns one RFC822 message into an InboundMessage. Plain
// text is preferred; HTML-only mail gets a text rendering so classification
// never runs on raw markup.
func parseRawMessage(raw []byte, mailbox, folder string) (*dto.InboundMessage, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse message")
	}

	messageID := envelope.GetHeader("Message-Id")
	if messageID == "" {
		return nil, errors.New("message has no Message-Id header")
	}

	sender, senderName := parseAddress(envelope.GetHeader("From"))
	recipient, _ := parseAddress(envelope.GetHeader("To"))

	var ccAddresses []string
	if cc, err := envelope.AddressList("Cc"); err == nil {
		for _, addr := range cc {
			ccAddresses = append(ccAddresses, addr.Address)
		}
		// Mail clients happily repeat addresses across the Cc header
		ccAddresses = utils.UniqueEmails(ccAddresses)
	}

	date := utils.Now()
	if parsed, err := mail.ParseDate(envelope.GetHeader("Date")); err == nil {
		date = parsed.UTC()
	}

	bodyPlain := envelope.Text
	if bodyPlain == "" && envelope.HTML != "" {
		bodyPlain = HTMLToText(envelope.HTML)
	}

	inbound := &dto.InboundMessage{
		MessageID:   messageID,
		Mailbox:     mailbox,
		Folder:      folder,
		Subject:     envelope.GetHeader("Subject"),
		Sender:      sender,
		SenderName:  senderName,
		Recipient:   recipient,
		CcAddresses: ccAddresses,
		Date:        date,
		BodyPlain:   bodyPlain,
		BodyHTML:    envelope.HTML,
	}

	for _, attachment := range envelope.Attachments {
		if attachment.FileName == "" || len(attachment.Content) == 0 {
			continue
		}
		inbound.Attachments = append(inbound.Attachments, dto.InboundAttachment{
			Filename:    attachment.FileName,
			ContentType: attachment.ContentType,
			Data:        attachment.Content,
		})
	}

	return inbound, nil
}

func parseAddress(header string) (address, name string) {
	address = utils.ExtractAddress(header)
	name = utils.ExtractDisplayName(header)
	return address, name
}
