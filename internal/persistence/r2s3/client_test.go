package r2s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestClient_PutObjectSigned(t *testing.T) {
	var (
		gotPath, gotAuth, gotHash, gotType, gotMeta string
		gotBody                                     []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotHash = r.Header.Get("x-amz-content-sha256")
		gotType = r.Header.Get("Content-Type")
		gotMeta = r.Header.Get(MetaDigest)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "bodies", "AKID", "SECRET")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	body := []byte("Octree\x01")
	if err := c.PutObject(context.Background(), "/prod//bodies/a b.octree", body, "", map[string]string{MetaDigest: "abc"}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}
	if gotPath != "/bodies/prod/bodies/a%20b.octree" {
		t.Fatalf("path=%q", gotPath)
	}
	sum := sha256.Sum256(body)
	if gotHash != hex.EncodeToString(sum[:]) {
		t.Fatalf("payload hash=%q", gotHash)
	}
	if string(gotBody) != string(body) || gotType != "application/octet-stream" || gotMeta != "abc" {
		t.Fatalf("body=%q type=%q meta=%q", gotBody, gotType, gotMeta)
	}
	wantPrefix := "AWS4-HMAC-SHA256 Credential=AKID/20260304/auto/s3/aws4_request, " +
		"SignedHeaders=content-type;host;x-amz-content-sha256;x-amz-date;x-amz-meta-octree-digest, Signature="
	if !strings.HasPrefix(gotAuth, wantPrefix) {
		t.Fatalf("auth=%q", gotAuth)
	}
	if sig := strings.TrimPrefix(gotAuth, wantPrefix); len(sig) != 64 {
		t.Fatalf("signature=%q", sig)
	}
}

func TestClient_PutFileErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "bodies", "AKID", "SECRET")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "rock.octree.zst")
	if err := os.WriteFile(p, []byte{0x28, 0xB5, 0x2F, 0xFD}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err = c.PutFile(context.Background(), "rock.octree.zst", p, nil)
	if err == nil || !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err=%v", err)
	}
	if err := c.PutFile(context.Background(), "x", dir, nil); err == nil {
		t.Fatalf("directory upload accepted")
	}
	if err := c.PutObject(context.Background(), "../", nil, "", nil); err == nil {
		t.Fatalf("empty key accepted")
	}
	if _, err := New("", "b", "k", "s"); err == nil {
		t.Fatalf("missing endpoint accepted")
	}
	if got := contentTypeFor(p); got != "application/zstd" {
		t.Fatalf("content type=%q", got)
	}
}
