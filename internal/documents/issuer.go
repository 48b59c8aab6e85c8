package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	blobcore "custodycore/internal/blob/core"
	"custodycore/internal/core"
	"custodycore/pkg/domain"
)

// GeneratedPrefix is the blob key prefix for rendered custody certificates.
const GeneratedPrefix = "generated/"

var errNoRecipient = errors.New("document has no recipient")

// MailIssuer renders custody certificates, archives them and emails them.
// Return requests forward the stored signed certificate.
type MailIssuer struct {
	renderer *Renderer
	sender   Sender
	blobs    blobcore.Store
	logger   core.Logger
	now      func() time.Time
}

// NewMailIssuer wires the issuer. blobs may be nil, in which case rendered
// certificates are not archived and return requests carry no attachment.
func NewMailIssuer(renderer *Renderer, sender Sender, blobs blobcore.Store, logger core.Logger) *MailIssuer {
	return &MailIssuer{
		renderer: renderer,
		sender:   sender,
		blobs:    blobs,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Issue implements core.DocumentIssuer.
func (m *MailIssuer) Issue(ctx context.Context, event domain.OutboxEvent) error {
	req := event.Request
	if strings.TrimSpace(req.Recipient()) == "" {
		return errNoRecipient
	}
	if req.Kind == domain.DocumentReturn {
		return m.issueReturn(ctx, req)
	}
	return m.issueCustody(ctx, event)
}

func (m *MailIssuer) issueCustody(ctx context.Context, event domain.OutboxEvent) error {
	req := event.Request
	html, doc, err := m.renderer.Render(req, m.now())
	if err != nil {
		return err
	}
	if m.blobs != nil {
		key := fmt.Sprintf("%s%s/%s.html", GeneratedPrefix, firstNonBlank(req.Equipment.Serial, req.Equipment.ID), event.ID)
		_, err := m.blobs.Put(ctx, key, strings.NewReader(string(html)), blobcore.PutOptions{
			ContentType: "text/html; charset=utf-8",
			Metadata:    map[string]string{"agent-id": req.AgentID, "inventory-number": doc.InventoryNumber},
		})
		if err != nil && !errors.Is(err, blobcore.ErrExists) {
			return fmt.Errorf("archive certificate: %w", err)
		}
	}
	return m.sender.Send(ctx, Message{
		To:      req.AgentEmail,
		Subject: "Equipment custody certificate: " + doc.Description,
		Body: fmt.Sprintf("Hello %s,\n\nAttached is the custody certificate for the equipment assigned to you.\n"+
			"Please review it, sign it and return it to the IT department.\n\nRegards,\nIT Team.", req.AgentName),
		Attachments: []Attachment{{
			Name:        fmt.Sprintf("Custody Certificate - %s - %s.html", req.AgentName, doc.Date),
			ContentType: "text/html; charset=utf-8",
			Data:        html,
		}},
	})
}

func (m *MailIssuer) issueReturn(ctx context.Context, req domain.DocumentRequest) error {
	eq := req.Equipment
	link := strings.TrimSpace(eq.SignedCertificateLink)
	if link == "" || m.blobs == nil {
		m.logger.Warn("no signed certificate to forward", "serial", eq.Serial)
		return nil
	}
	info, body, err := m.blobs.Get(ctx, link)
	if errors.Is(err, blobcore.ErrNotFound) {
		m.logger.Warn("signed certificate missing from blob store", "serial", eq.Serial, "key", link)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load signed certificate: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read signed certificate: %w", err)
	}
	agent := firstNonBlank(req.AgentName, "the agent")
	return m.sender.Send(ctx, Message{
		To:      req.ReturnEmail,
		Subject: "Pending: equipment return signature - " + orNA(eq.Name),
		Body: fmt.Sprintf("Hello,\n\nThe return process has started for %s with serial %s, previously assigned to %s.\n"+
			"Attached is the original custody certificate. Please print it, collect the signature in the RETURN section "+
			"and hand it to the IT department.\n\nRegards,\nIT Team.", orNA(eq.Name), orNA(eq.Serial), agent),
		Attachments: []Attachment{{Name: path.Base(link), ContentType: info.ContentType, Data: data}},
	})
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// LogIssuer only logs documents. It is meant for development.
type LogIssuer struct {
	logger core.Logger
}

// NewLogIssuer returns an issuer that logs every document.
func NewLogIssuer(logger core.Logger) *LogIssuer {
	return &LogIssuer{logger: logger}
}

// Issue implements core.DocumentIssuer.
func (l *LogIssuer) Issue(_ context.Context, event domain.OutboxEvent) error {
	req := event.Request
	l.logger.Info("document issued",
		"event", event.ID,
		"kind", req.Kind,
		"recipient", req.Recipient(),
		"serial", req.Equipment.Serial,
		"location", req.Location,
	)
	return nil
}
