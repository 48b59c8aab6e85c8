package fs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"custodycore/internal/blob/core"
)

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := s.Put(ctx, "signed-certificates/SN-1/cert.pdf", strings.NewReader("signed"), core.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"serial": "SN-1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 6 || info.ContentType != "application/pdf" || info.Metadata["serial"] != "SN-1" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "signed-certificates/SN-1/cert.pdf", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := s.Get(ctx, "signed-certificates/SN-1/cert.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "signed" {
		t.Fatalf("unexpected body %q", body)
	}
	list, err := s.List(ctx, "signed-certificates/")
	if err != nil || len(list) != 1 || list[0].Key != "signed-certificates/SN-1/cert.pdf" {
		t.Fatalf("unexpected list %+v err=%v", list, err)
	}
	if ok, err := s.Delete(ctx, "signed-certificates/SN-1/cert.pdf"); !ok || err != nil {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := s.Head(ctx, "signed-certificates/SN-1/cert.pdf"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestFSStoreRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/../../b", "x.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestFSStorePresign(t *testing.T) {
	ctx := context.Background()
	plain, _ := New(t.TempDir(), "")
	if _, err := plain.PresignURL(ctx, "a", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported without base url, got %v", err)
	}
	served, _ := New(t.TempDir(), "http://localhost:8080/files/")
	url, err := served.PresignURL(ctx, "generated/a.html", core.SignedURLOptions{})
	if err != nil || url != "http://localhost:8080/files/generated/a.html" {
		t.Fatalf("unexpected url %q err=%v", url, err)
	}
	if _, err := served.PresignURL(ctx, "a", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported method, got %v", err)
	}
}
