package main

import (
	"context"
	"strings"
	"testing"

	"canteen/backend/internal/config"
	"canteen/backend/internal/store/memory"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", BlobBackend: config.BlobBackendDisk, BlobSigningSecret: strongSecret + "x"},
		{AuthSecret: strongSecret, BlobBackend: config.BlobBackendDisk, BlobSigningSecret: "short"},
		{AuthSecret: strongSecret, BlobBackend: config.BlobBackendDisk, BlobSigningSecret: strongSecret},
		{AuthSecret: strongSecret, BlobBackend: config.BlobBackendS3},
		{AuthSecret: strongSecret, BlobBackend: "ftp"},
	}
	for _, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("expected %+v to be rejected", cfg)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	disk := config.Config{AuthSecret: strongSecret, BlobBackend: config.BlobBackendDisk, BlobSigningSecret: strings.Repeat("s", 32)}
	if err := validateSecurityConfig(disk); err != nil {
		t.Fatalf("expected strong disk config to pass, got %v", err)
	}
	s3 := config.Config{AuthSecret: strongSecret, BlobBackend: config.BlobBackendS3, S3Bucket: "reports"}
	if err := validateSecurityConfig(s3); err != nil {
		t.Fatalf("expected s3 config to pass, got %v", err)
	}
}

func TestOpenRepositoryFallsBackToMemory(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), config.Config{})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	if closeFn != nil {
		t.Fatalf("expected no closer for the memory store")
	}
	if _, ok := repo.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", repo)
	}
}

func TestOpenRepositoryUsesSQLite(t *testing.T) {
	repo, closeFn, err := openRepository(context.Background(), config.Config{DatabaseURL: "sqlite://" + t.TempDir() + "/canteen.db"})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer closeFn()

	products, err := repo.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected an empty migrated database, got %d products", len(products))
	}
}

func TestOpenBlobStoreDiskServesSignedLinks(t *testing.T) {
	cfg := config.Config{
		BlobBackend:       config.BlobBackendDisk,
		BlobDiskRoot:      t.TempDir(),
		PublicBaseURL:     "http://127.0.0.1:8080",
		BlobSigningSecret: strings.Repeat("s", 32),
	}
	blobs, handler, err := openBlobStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	if blobs == nil || handler == nil {
		t.Fatalf("expected disk store with a link handler")
	}

	if _, _, err := openBlobStore(context.Background(), config.Config{BlobBackend: "ftp"}); err == nil {
		t.Fatalf("expected unknown backend to fail")
	}
}
