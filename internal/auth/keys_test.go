package auth

import (
	"strings"
	"testing"
	"time"
)

func TestKeyStoreCreateAndValidate(t *testing.T) {
	s := NewKeyStore()

	k, err := s.Create("ci-bot", "tenant-1", []string{ScopeAssist}, nil)
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	if !strings.HasPrefix(k.Key, "lf-") {
		t.Errorf("key = %q, want lf- prefix", k.Key)
	}
	if k.CallerID != "tenant-1" {
		t.Errorf("CallerID = %q, want tenant-1", k.CallerID)
	}
	if !k.Active || k.CreatedAt.IsZero() {
		t.Errorf("key = %+v", k)
	}

	got, ok := s.ValidateKey(k.Key)
	if !ok || got.ID != k.ID {
		t.Fatalf("ValidateKey() = %+v, %v", got, ok)
	}
	if _, ok := s.ValidateKey("lf-bogus"); ok {
		t.Error("unknown key validated")
	}
}

func TestKeyStoreDefaults(t *testing.T) {
	s := NewKeyStore()

	k, err := s.Create("dashboard", "", nil, nil)
	if err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}
	if k.CallerID != k.ID {
		t.Errorf("empty caller should default to key ID: %+v", k)
	}
	if !k.HasScope(ScopeAssist) || k.HasScope(ScopeAdmin) {
		t.Errorf("default scopes = %v, want [assist]", k.Scopes)
	}
}

func TestKeyStoreRevoke(t *testing.T) {
	s := NewKeyStore()
	k, _ := s.Create("app", "", nil, nil)

	if err := s.Revoke(k.ID); err != nil {
		t.Fatalf("Revoke() returned error: %v", err)
	}
	if _, ok := s.ValidateKey(k.Key); ok {
		t.Error("revoked key still validates")
	}
	if err := s.Revoke("missing"); err == nil {
		t.Error("expected error revoking unknown key")
	}
}

func TestKeyStoreExpiry(t *testing.T) {
	s := NewKeyStore()
	past := time.Now().Add(-time.Minute)
	k, _ := s.Create("expired", "", nil, &past)

	if _, ok := s.ValidateKey(k.Key); ok {
		t.Error("expired key still validates")
	}
}

func TestKeyStoreRotate(t *testing.T) {
	s := NewKeyStore()
	k, _ := s.Create("app", "tenant-7", nil, nil)
	oldKey := k.Key

	rotated, err := s.RotateKey(k.ID)
	if err != nil {
		t.Fatalf("RotateKey() returned error: %v", err)
	}
	if rotated.Key == oldKey {
		t.Error("rotation kept the old key string")
	}
	if rotated.CallerID != "tenant-7" {
		t.Errorf("rotation changed caller identity: %q", rotated.CallerID)
	}
	if rotated.RotatedAt == nil {
		t.Error("RotatedAt not set")
	}
	if _, ok := s.ValidateKey(oldKey); ok {
		t.Error("old key string still validates after rotation")
	}
	if _, ok := s.ValidateKey(rotated.Key); !ok {
		t.Error("new key string does not validate")
	}
}

func TestKeyStoreDelete(t *testing.T) {
	s := NewKeyStore()
	k, _ := s.Create("app", "", nil, nil)

	if err := s.Delete(k.ID); err != nil {
		t.Fatalf("Delete() returned error: %v", err)
	}
	if _, ok := s.Get(k.ID); ok {
		t.Error("deleted key still retrievable")
	}
	if _, ok := s.ValidateKey(k.Key); ok {
		t.Error("deleted key still validates")
	}
}

func TestKeyStoreListMasksSecrets(t *testing.T) {
	s := NewKeyStore()
	k, _ := s.Create("app", "", nil, nil)

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("List() returned %d keys, want 1", len(list))
	}
	if list[0].Key == k.Key {
		t.Error("List() exposed the full key string")
	}
	if !strings.HasSuffix(list[0].Key, "...") {
		t.Errorf("masked key = %q", list[0].Key)
	}

	// Masking must not corrupt the stored key.
	if _, ok := s.ValidateKey(k.Key); !ok {
		t.Error("original key no longer validates after List()")
	}
}
