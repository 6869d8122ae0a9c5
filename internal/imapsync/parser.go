package imapsync

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vdavid/mailsync/internal/models"
)

// htmlPolicy strips scripts, event handlers, and embedded frames from
// cached HTML bodies. Sanitization happens once at ingest, so everything
// read back from the cache is already safe to render.
var htmlPolicy = bluemonday.UGCPolicy()

// ParsedAttachment pairs attachment metadata with its decoded content.
type ParsedAttachment struct {
	Attachment models.Attachment
	Data       []byte
}

// ParseMessage converts a fetched IMAP message into the cache model plus
// its attachments. The raw body is normalized with enmime; HTML is
// sanitized before it is stored.
func ParseMessage(imapMsg *imap.Message, accountID, folderID int64) (*models.Message, []ParsedAttachment, error) {
	if imapMsg == nil {
		return nil, nil, fmt.Errorf("imap message is nil")
	}

	isRead := false
	isStarred := false
	for _, flag := range imapMsg.Flags {
		if flag == imap.SeenFlag {
			isRead = true
		}
		if flag == imap.FlaggedFlag {
			isStarred = true
		}
	}

	msg := &models.Message{
		AccountID: accountID,
		FolderID:  folderID,
		IMAPUID:   int64(imapMsg.Uid),
		IsRead:    isRead,
		IsStarred: isStarred,
	}

	if imapMsg.Envelope != nil {
		if len(imapMsg.Envelope.From) > 0 {
			msg.FromHeader = formatAddress(imapMsg.Envelope.From[0])
		}
		msg.ToHeader = formatAddressList(imapMsg.Envelope.To)
		msg.CCHeader = formatAddressList(imapMsg.Envelope.Cc)
		msg.Subject = imapMsg.Envelope.Subject
		msg.MessageIDHeader = imapMsg.Envelope.MessageId
		if !imapMsg.Envelope.Date.IsZero() {
			date := imapMsg.Envelope.Date
			msg.Date = &date
		}
	}

	var attachments []ParsedAttachment
	section := &imap.BodySectionName{}
	if bodyReader := imapMsg.GetBody(section); bodyReader != nil {
		var err error
		attachments, err = parseBody(bodyReader, msg)
		if err != nil {
			return nil, nil, err
		}
	}

	return msg, attachments, nil
}

// parseBody normalizes the MIME body into the message and returns the
// decoded attachments.
func parseBody(bodyReader io.Reader, msg *models.Message) ([]ParsedAttachment, error) {
	envelope, err := enmime.ReadEnvelope(bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message body: %w", err)
	}

	msg.BodyPlain = envelope.Text

	htmlBody := envelope.HTML
	if htmlBody == "" && envelope.Text != "" {
		htmlBody = textToHTML(envelope.Text)
	}
	msg.BodyHTML = htmlPolicy.Sanitize(htmlBody)

	var attachments []ParsedAttachment
	for _, part := range envelope.Attachments {
		attachments = append(attachments, ParsedAttachment{
			Attachment: models.Attachment{
				Filename:  part.FileName,
				MimeType:  part.ContentType,
				SizeBytes: int64(len(part.Content)),
			},
			Data: part.Content,
		})
	}

	msg.HasAttachments = len(attachments) > 0

	return attachments, nil
}

func textToHTML(text string) string {
	return strings.ReplaceAll(text, "\n", "<br>")
}

// formatAddress renders an IMAP address as "Name <local@host>".
func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}

	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}

	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", address.PersonalName, address.MailboxName, address.HostName)
	}

	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

// formatAddressList renders addresses as a comma-separated header value.
func formatAddressList(addresses []*imap.Address) string {
	var parts []string
	for _, address := range addresses {
		if formatted := formatAddress(address); formatted != "" {
			parts = append(parts, formatted)
		}
	}
	return strings.Join(parts, ", ")
}
