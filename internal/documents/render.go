// Package documents renders custody certificates and delivers queued outbox
// documents by email, MQTT or the log.
package documents

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"custodycore/pkg/domain"
)

// DefaultInventoryPrefix starts every inventory number.
const DefaultInventoryPrefix = "TWH-COL"

// DateLayout formats the certificate date.
const DateLayout = "January 2, 2006"

// InventoryNumber builds PREFIX-FLOOR-LAST4 from the last four characters of
// the serial.
func InventoryNumber(prefix, floor, serial string) string {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = DefaultInventoryPrefix
	}
	runes := []rune(strings.TrimSpace(serial))
	if len(runes) > 4 {
		runes = runes[len(runes)-4:]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, strings.TrimSpace(floor), string(runes))
}

// CustodyDocument holds the template fields of a custody certificate.
type CustodyDocument struct {
	Date            string
	AgentName       string
	AgentID         string
	InventoryNumber string
	ReceivedBy      string
	DeliveredBy     string
	Description     string
	Serial          string
	Brand           string
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Equipment Custody Certificate</title></head>
<body>
<h1>Equipment Custody Certificate</h1>
<p>Date: {{.Date}}</p>
<p>Employee: {{.AgentName}} (ID {{.AgentID}})</p>
<p>Inventory number: {{.InventoryNumber}}</p>
<table>
<tr><th>Description</th><th>Serial</th><th>Brand</th></tr>
<tr><td>{{.Description}}</td><td>{{.Serial}}</td><td>{{.Brand}}</td></tr>
</table>
<p>Received by: {{.ReceivedBy}}</p>
<p>Delivered by: {{.DeliveredBy}}</p>
<h2>Return</h2>
<p>Received by IT: ____________________ Date: __________</p>
</body>
</html>
`

// Renderer fills the custody certificate template.
type Renderer struct {
	tmpl        *template.Template
	prefix      string
	deliveredBy string
}

// NewRenderer parses source, or the built-in certificate when source is
// empty.
func NewRenderer(source, inventoryPrefix, deliveredBy string) (*Renderer, error) {
	if strings.TrimSpace(source) == "" {
		source = defaultTemplate
	}
	tmpl, err := template.New("custody").Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse certificate template: %w", err)
	}
	return &Renderer{tmpl: tmpl, prefix: inventoryPrefix, deliveredBy: deliveredBy}, nil
}

// Document derives the template fields for req at now.
func (r *Renderer) Document(req domain.DocumentRequest, now time.Time) CustodyDocument {
	eq := req.Equipment
	return CustodyDocument{
		Date:            now.Format(DateLayout),
		AgentName:       req.AgentName,
		AgentID:         req.AgentID,
		InventoryNumber: InventoryNumber(r.prefix, req.Location, eq.Serial),
		ReceivedBy:      req.AgentName,
		DeliveredBy:     orNA(r.deliveredBy),
		Description:     orNA(eq.Name),
		Serial:          orNA(eq.Serial),
		Brand:           orNA(eq.Brand),
	}
}

// Render executes the template for req.
func (r *Renderer) Render(req domain.DocumentRequest, now time.Time) ([]byte, CustodyDocument, error) {
	doc := r.Document(req, now)
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, doc); err != nil {
		return nil, doc, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), doc, nil
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return domain.NotAvailable
	}
	return v
}
