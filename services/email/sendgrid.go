package emailsvc

import (
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/tarpaulin/backend/core"
)

// sendgridService sends emails via the SendGrid Web API v3.
type sendgridService struct {
	client           *sendgrid.Client
	defaultFromEmail mail.Address
	subjPrefix       string
	logger           core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	return &sendgridService{
		client:           sendgrid.NewSendClient(conf.SendgridAPIKey),
		defaultFromEmail: conf.DefaultFromEmail,
		subjPrefix:       "[" + conf.AppName + "] ",
		logger:           logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc sendgridService) sendMessage(msg *core.EmailMessage) {
	if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
		if err := svc.send(*msg); err != nil {
			svc.logger.Error("sending email", err)
		}
	}
}

func (svc sendgridService) send(msg core.EmailMessage) error {
	sgMsg := sgmail.NewV3Mail()
	sgMsg.SetFrom(sgmail.NewEmail(svc.defaultFromEmail.Name, svc.defaultFromEmail.Address))
	sgMsg.Subject = svc.subjPrefix + msg.Subject

	p := sgmail.NewPersonalization()
	p.AddTos(toSGEmails(msg.To)...)
	p.AddCCs(toSGEmails(msg.Cc)...)
	p.AddBCCs(toSGEmails(msg.Bcc)...)
	sgMsg.AddPersonalizations(p)

	if msg.TextContent != "" {
		sgMsg.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		sgMsg.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		sgMsg.AddAttachment(toSGAttachment(at))
	}

	resp, err := svc.client.Send(sgMsg)
	if err != nil {
		return errors.Wrap(err, "sending email via sendgrid")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid responded with %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func toSGEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, addr := range addrs {
		emails = append(emails, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return emails
}

func toSGAttachment(at core.Attachment) *sgmail.Attachment {
	return sgmail.NewAttachment().
		SetFilename(at.Filename).
		SetType(at.ContentType).
		SetContent(at.Base64Content()).
		SetDisposition("attachment")
}
