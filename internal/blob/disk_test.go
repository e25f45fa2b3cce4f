package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

func newTestDisk(t *testing.T) (*DiskStore, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	d, err := NewDiskStore(t.TempDir(), srv.URL, "test-signing-secret")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	mux.Handle("/blobs/", d.Handler())
	return d, srv
}

func TestDiskUploadExistsAndDownload(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDisk(t)

	key := Key("daily_reports", "daily_report_2024-01-05.xlsx")
	if ok, err := d.Exists(ctx, key); err != nil || ok {
		t.Fatalf("expected missing object, got ok=%v err=%v", ok, err)
	}

	if err := d.Upload(ctx, "daily_reports", "daily_report_2024-01-05.xlsx", []byte("payload"), "application/octet-stream"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ok, err := d.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("expected object to exist, got ok=%v err=%v", ok, err)
	}

	link, err := d.Presign(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	resp, err := http.Get(link)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "payload" {
		t.Fatalf("unexpected download: status=%d body=%q", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "daily_report_2024-01-05.xlsx") {
		t.Fatalf("expected attachment filename, got %q", resp.Header.Get("Content-Disposition"))
	}
}

func TestDiskRejectsTamperedAndExpiredLinks(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDisk(t)

	if err := d.Upload(ctx, "monthly_reports", "monthly_report_6_2024.xlsx", []byte("x"), ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	key := Key("monthly_reports", "monthly_report_6_2024.xlsx")

	link, _ := d.Presign(ctx, key, time.Hour)
	parsed, _ := url.Parse(link)
	q := parsed.Query()
	q.Set("sig", strings.Repeat("0", 64))
	parsed.RawQuery = q.Encode()
	assertStatus(t, parsed.String(), http.StatusForbidden)

	d.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := d.Presign(ctx, key, time.Hour)
	d.now = time.Now
	assertStatus(t, expired, http.StatusForbidden)
}

func TestUploadOverwritesExistingObject(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestDisk(t)

	for _, body := range []string{"first", "second"} {
		if err := d.Upload(ctx, "daily_reports", "r.xlsx", []byte(body), ""); err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	got, err := os.ReadFile(d.path(Key("daily_reports", "r.xlsx")))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{"daily_reports/daily_report_2024-01-05.xlsx", "a/b/c"}
	invalid := []string{"", "/etc/passwd", "../secret", "daily_reports/../../x", "a//b", "a\\b"}
	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Fatalf("%q: unexpected error %v", key, err)
		}
	}
	for _, key := range invalid {
		if err := ValidateKey(key); err == nil {
			t.Fatalf("%q: expected error", key)
		}
	}
}

func assertStatus(t *testing.T, link string, want int) {
	t.Helper()
	resp, err := http.Get(link)
	if err != nil {
		t.Fatalf("get %s: %v", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}
