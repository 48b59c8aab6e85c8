package blob

import (
	"context"
	"path/filepath"
	"testing"

	"custodycore/internal/blob/core"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		cfg    Config
		driver core.Driver
	}{
		{"default fs", Config{FSRoot: filepath.Join(t.TempDir(), "blobs")}, core.DriverFilesystem},
		{"memory", Config{Driver: "MEMORY"}, core.DriverMemory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if store.Driver() != tc.driver {
				t.Fatalf("expected %s, got %s", tc.driver, store.Driver())
			}
		})
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: core.DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
