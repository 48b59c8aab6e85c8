// Package fs stores blobs on the local filesystem with a JSON sidecar per
// object for content type and metadata.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"custodycore/internal/blob/core"
)

const sidecarSuffix = ".meta"

// Store implements core.Store rooted at a directory.
type Store struct {
	root    string
	baseURL string
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	ETag        string            `json:"etag"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// New creates the root directory when missing. baseURL, when set, is used
// to build PresignURL results for a locally served archive.
func New(root, baseURL string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("fs blob root required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the directory blobs are written under.
func (s *Store) Root() string { return s.root }

func cleanKey(key string) (string, error) {
	k := strings.TrimLeft(filepath.ToSlash(strings.TrimSpace(key)), "/")
	if k == "" {
		return "", errors.New("empty key")
	}
	for _, part := range strings.Split(k, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}
	if strings.HasSuffix(k, sidecarSuffix) {
		return "", fmt.Errorf("key %q uses reserved suffix", key)
	}
	return k, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	k, err := cleanKey(key)
	if err != nil {
		return core.Info{}, err
	}
	target := s.path(k)
	if _, err := os.Stat(target); err == nil {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, k)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return core.Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return core.Info{}, err
	}
	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return core.Info{}, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return core.Info{}, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return core.Info{}, err
	}
	meta := sidecar{ContentType: opts.ContentType, ETag: hex.EncodeToString(hash.Sum(nil)), Metadata: core.CloneMetadata(opts.Metadata)}
	payload, err := json.Marshal(meta)
	if err != nil {
		return core.Info{}, err
	}
	if err := os.WriteFile(target+sidecarSuffix, payload, 0o600); err != nil {
		return core.Info{}, err
	}
	return s.info(k)
}

func (s *Store) info(key string) (core.Info, error) {
	st, err := os.Stat(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	if err != nil {
		return core.Info{}, err
	}
	info := core.Info{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC()}
	if raw, err := os.ReadFile(s.path(key) + sidecarSuffix); err == nil {
		var meta sidecar
		if json.Unmarshal(raw, &meta) == nil {
			info.ContentType = meta.ContentType
			info.ETag = meta.ETag
			info.Metadata = meta.Metadata
		}
	}
	return info, nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	info, err := s.info(k)
	if err != nil {
		return core.Info{}, nil, err
	}
	f, err := os.Open(s.path(k))
	if err != nil {
		return core.Info{}, nil, err
	}
	return info, f, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	k, err := cleanKey(key)
	if err != nil {
		return core.Info{}, err
	}
	return s.info(k)
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(s.path(k))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = os.Remove(s.path(k) + sidecarSuffix)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, sidecarSuffix) || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.info(key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// PresignURL returns baseURL/key when a base URL is configured. The link is
// not time limited.
func (s *Store) PresignURL(_ context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if s.baseURL == "" {
		return "", core.ErrUnsupported
	}
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + k, nil
}
