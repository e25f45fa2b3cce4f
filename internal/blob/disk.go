package blob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DiskStore keeps objects under a local directory and issues HMAC-signed,
// expiring download links served by Handler.
type DiskStore struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewDiskStore(root string, baseURL string, secret string) (*DiskStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("disk blob root is required")
	}
	if secret == "" {
		return nil, errors.New("disk blob signing secret is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &DiskStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

func (d *DiskStore) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *DiskStore) Upload(_ context.Context, folder string, name string, body []byte, _ string) error {
	key := Key(folder, name)
	if err := ValidateKey(key); err != nil {
		return err
	}

	target := d.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func (d *DiskStore) Exists(_ context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	info, err := os.Stat(d.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (d *DiskStore) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	expires := d.now().Add(ttl).Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", d.sign(key, expires))
	return fmt.Sprintf("%s/blobs/%s?%s", d.baseURL, (&url.URL{Path: key}).EscapedPath(), q.Encode()), nil
}

func (d *DiskStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, d.secret)
	_, _ = mac.Write([]byte(key + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Handler serves GET /blobs/{key} for links produced by Presign.
func (d *DiskStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/blobs/")
		if err := ValidateKey(key); err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		expires, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
		if err != nil || d.now().Unix() > expires {
			http.Error(w, "link expired", http.StatusForbidden)
			return
		}
		sig := r.URL.Query().Get("sig")
		if !hmac.Equal([]byte(sig), []byte(d.sign(key, expires))) {
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}

		f, err := os.Open(d.path(key))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
		http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
	})
}
