package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	blobcore "custodycore/internal/blob/core"
	"custodycore/pkg/domain"
)

// SignedCertificatePrefix is the blob key prefix for uploaded certificates.
const SignedCertificatePrefix = "signed-certificates/"

// CertificateUpload describes an uploaded signed certificate file.
type CertificateUpload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadOutcome reports where the certificate was stored.
type UploadOutcome struct {
	Message string `json:"message"`
	Key     string `json:"key"`
	URL     string `json:"url,omitempty"`
}

var errNoBlobStore = errors.New("blob store not configured")

// UploadSignedCertificate archives the file and links it to the record at
// (partition, id). The blob is removed again if the link cannot be saved.
func (s *Service) UploadSignedCertificate(ctx context.Context, partition, id string, file CertificateUpload) (UploadOutcome, error) {
	if s.blobs == nil {
		return UploadOutcome{}, domain.ExternalServiceError{Service: "blob", Err: errNoBlobStore}
	}
	if file.Body == nil {
		return UploadOutcome{}, domain.ValidationError{Field: "file", Message: "A certificate file is required."}
	}
	var rec domain.Equipment
	if err := s.store.View(ctx, func(v domain.TransactionView) error {
		var err error
		rec, err = locate(v, partition, id)
		return err
	}); err != nil {
		return UploadOutcome{}, err
	}

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(file.FileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "certificate.pdf"
	}
	folder := firstNonEmpty(rec.Serial, rec.ID)
	key := fmt.Sprintf("%s%s/%s-%s", SignedCertificatePrefix, folder, uuid.NewString(), name)
	if _, err := s.blobs.Put(ctx, key, file.Body, blobcore.PutOptions{
		ContentType: file.ContentType,
		Metadata:    map[string]string{"serial": rec.Serial, "equipment-id": rec.ID},
	}); err != nil {
		return UploadOutcome{}, domain.ExternalServiceError{Service: "blob", Err: err}
	}

	err := s.mutate(ctx, "upload_signed_certificate", func(tx domain.Transaction) error {
		current, err := locate(tx, partition, id)
		if err != nil {
			return err
		}
		updated, err := tx.Update(current.ID, func(e *domain.Equipment) error {
			e.SignedCertificateLink = key
			return nil
		})
		if err != nil {
			return err
		}
		tx.AppendAudit(domain.ActionCertificateUploaded, updated.Serial, fmt.Sprintf("Signed certificate %q uploaded.", name))
		return nil
	})
	if err != nil {
		if _, derr := s.blobs.Delete(ctx, key); derr != nil {
			s.logger.Error("orphaned certificate blob", "key", key, "error", derr)
		}
		return UploadOutcome{}, err
	}

	out := UploadOutcome{Message: "Signed certificate uploaded and linked.", Key: key}
	if url, err := s.blobs.PresignURL(ctx, key, blobcore.SignedURLOptions{}); err == nil {
		out.URL = url
	} else if !errors.Is(err, blobcore.ErrUnsupported) {
		s.logger.Warn("presign certificate failed", "key", key, "error", err)
	}
	return out, nil
}

// ListCertificates returns the archived signed certificates for a serial.
func (s *Service) ListCertificates(ctx context.Context, serial string) ([]blobcore.Info, error) {
	if s.blobs == nil {
		return nil, domain.ExternalServiceError{Service: "blob", Err: errNoBlobStore}
	}
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, domain.ValidationError{Field: "serial", Message: "Serial is required."}
	}
	infos, err := s.blobs.List(ctx, SignedCertificatePrefix+serial+"/")
	if err != nil {
		return nil, domain.ExternalServiceError{Service: "blob", Err: err}
	}
	return infos, nil
}
