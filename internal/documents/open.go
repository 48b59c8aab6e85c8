package documents

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	blobcore "custodycore/internal/blob/core"
	"custodycore/internal/core"
)

// Driver selects the document issuer.
type Driver string

// Supported issuers.
const (
	DriverLog  Driver = "log"
	DriverSMTP Driver = "smtp"
	DriverMQTT Driver = "mqtt"
)

// Config selects and configures the document issuer.
type Config struct {
	Driver          Driver
	InventoryPrefix string
	DeliveredBy     string
	TemplatePath    string
	Template        string
	SMTP            SMTPConfig
	MQTT            MQTTConfig
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the issuer named by cfg.Driver. The returned closer releases
// broker connections.
func Open(ctx context.Context, cfg Config, blobs blobcore.Store, logger core.Logger) (core.DocumentIssuer, io.Closer, error) {
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case "", DriverLog:
		return NewLogIssuer(logger), nopCloser{}, nil
	case DriverSMTP:
		source := cfg.Template
		if source == "" && cfg.TemplatePath != "" {
			raw, err := os.ReadFile(cfg.TemplatePath)
			if err != nil {
				return nil, nil, fmt.Errorf("read certificate template: %w", err)
			}
			source = string(raw)
		}
		renderer, err := NewRenderer(source, cfg.InventoryPrefix, cfg.DeliveredBy)
		if err != nil {
			return nil, nil, err
		}
		sender, err := NewSMTPSender(cfg.SMTP)
		if err != nil {
			return nil, nil, err
		}
		return NewMailIssuer(renderer, sender, blobs, logger), nopCloser{}, nil
	case DriverMQTT:
		pub, err := NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			return nil, nil, err
		}
		if err := pub.Connect(ctx); err != nil {
			logger.Warn("mqtt broker unavailable, will retry on delivery", "error", err)
		}
		return pub, pub, nil
	default:
		return nil, nil, fmt.Errorf("unsupported documents driver %q", cfg.Driver)
	}
}
