package domain

import (
	"errors"
	"testing"
	"time"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := InvalidMetadataError("https://example.org", ErrDescriptorExpired)

	if !errors.Is(err, ErrDescriptorExpired) {
		t.Error("errors.Is did not find the wrapped sentinel")
	}
	var app *AppError
	if !errors.As(err, &app) {
		t.Fatal("errors.As failed")
	}
	if app.Code != ErrCodeInvalidMetadata {
		t.Errorf("code = %q, want %q", app.Code, ErrCodeInvalidMetadata)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NoMetadataError("x", nil)); got != ErrCodeNoMetadata {
		t.Errorf("CodeOf = %q, want %q", got, ErrCodeNoMetadata)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	wrapped := SignatureValidationError("outer", ErrBadSignature)
	if got := CodeOf(wrapped); got != ErrCodeSignatureValidation {
		t.Errorf("CodeOf(wrapped) = %q", got)
	}
}

func TestDescriptorValidity(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	rec := &DescriptorRecord{EntityID: "https://example.org"}
	if !rec.IsValidAt(now) {
		t.Error("record without ValidUntil should never expire")
	}

	past := now.Add(-time.Hour)
	rec.ValidUntil = &past
	if rec.IsValidAt(now) {
		t.Error("record past ValidUntil should be invalid")
	}

	future := now.Add(time.Hour)
	rec.ValidUntil = &future
	if !rec.IsValidAt(now) {
		t.Error("record before ValidUntil should be valid")
	}
}
