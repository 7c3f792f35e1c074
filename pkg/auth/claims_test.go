package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestGetOrganizationUUID(t *testing.T) {
	org := uuid.New()
	ctx := WithClaims(context.Background(), &Claims{OrganizationUUID: org.String()}, "tok")

	got, ok := GetOrganizationUUID(ctx)
	if !ok {
		t.Fatal("expected organization UUID in context")
	}
	if got != org {
		t.Errorf("expected %s, got %s", org, got)
	}
}

func TestGetOrganizationUUID_Missing(t *testing.T) {
	if _, ok := GetOrganizationUUID(context.Background()); ok {
		t.Error("expected no organization UUID without claims")
	}

	ctx := WithClaims(context.Background(), &Claims{}, "tok")
	if _, ok := GetOrganizationUUID(ctx); ok {
		t.Error("expected no organization UUID for empty claim")
	}

	ctx = WithClaims(context.Background(), &Claims{OrganizationUUID: "garbage"}, "tok")
	if _, ok := GetOrganizationUUID(ctx); ok {
		t.Error("expected no organization UUID for malformed claim")
	}
}

func TestRequireOrganizationUUID(t *testing.T) {
	if _, err := RequireOrganizationUUID(context.Background()); err == nil {
		t.Error("expected error without claims")
	}

	org := uuid.New()
	ctx := WithClaims(context.Background(), &Claims{OrganizationUUID: org.String()}, "tok")
	got, err := RequireOrganizationUUID(ctx)
	if err != nil {
		t.Fatalf("RequireOrganizationUUID failed: %v", err)
	}
	if got != org {
		t.Errorf("expected %s, got %s", org, got)
	}
}

func TestGetCoreUserUUID(t *testing.T) {
	user := uuid.New()
	ctx := WithClaims(context.Background(), &Claims{CoreUserUUID: user.String()}, "tok")

	got, ok := GetCoreUserUUID(ctx)
	if !ok || got != user {
		t.Errorf("expected %s, got %s (ok=%v)", user, got, ok)
	}
}
