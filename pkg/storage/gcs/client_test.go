package gcs

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestBuildKeyShapes(t *testing.T) {
	complaintID := uuid.New()
	key := EvidenceKey(complaintID, "photo.png")
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %q", key)
	}
	if parts[0] != "complaint-evidence" {
		t.Fatalf("unexpected prefix %q", parts[0])
	}
	if parts[1] != complaintID.String() {
		t.Fatalf("expected complaint id segment, got %q", parts[1])
	}
	if !strings.HasSuffix(parts[2], "-photo.png") {
		t.Fatalf("expected filename suffix, got %q", parts[2])
	}

	purchaseID := uuid.New()
	if !strings.HasPrefix(ShipmentProofKey(purchaseID, "resi.jpg"), "shipment-proof/"+purchaseID.String()+"/") {
		t.Fatal("unexpected shipment proof key prefix")
	}
}

func TestBuildKeyStripsDirectories(t *testing.T) {
	key := EvidenceKey(uuid.New(), "../../etc/passwd")
	if strings.Contains(key, "..") {
		t.Fatalf("path traversal survived: %q", key)
	}
	if !strings.HasSuffix(key, "-passwd") {
		t.Fatalf("expected base name only, got %q", key)
	}
}

func TestBuildKeyEmptyFilename(t *testing.T) {
	key := ShipmentProofKey(uuid.New(), "   ")
	if !strings.HasSuffix(key, "-upload") {
		t.Fatalf("expected fallback name, got %q", key)
	}
}

func TestSignedURLRequiresObject(t *testing.T) {
	client := &Client{}
	if _, err := client.UploadURL("", "image/png"); err == nil {
		t.Fatal("expected error for uninitialized client")
	}
}
