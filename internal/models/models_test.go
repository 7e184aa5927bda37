package models

import (
	"errors"
	"testing"

	"github.com/keithriordan/foyer/internal/shared"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		model   Model
		wantErr bool
	}{
		{name: "valid user", model: &User{Username: "keith", Email: "k@example.com"}},
		{name: "user missing username", model: &User{Email: "k@example.com"}, wantErr: true},
		{name: "user bad email", model: &User{Username: "keith", Email: "not-an-email"}, wantErr: true},
		{name: "user display-name email", model: &User{Username: "keith", Email: "Keith <k@example.com>"}, wantErr: true},
		{name: "valid gift", model: &Gift{Title: "Book", Body: "Any", UserID: 1}},
		{name: "gift missing body", model: &Gift{Title: "Book", UserID: 1}, wantErr: true},
		{name: "gift missing owner", model: &Gift{Title: "Book", Body: "Any"}, wantErr: true},
		{name: "valid job", model: &Job{Title: "Engineer", CompanyName: "Acme", ListingURL: "https://example.com/job/1"}},
		{name: "job bad url", model: &Job{Title: "Engineer", CompanyName: "Acme", ListingURL: "example"}, wantErr: true},
		{name: "job ftp url", model: &Job{Title: "Engineer", CompanyName: "Acme", ListingURL: "ftp://example.com"}, wantErr: true},
		{name: "job missing company", model: &Job{Title: "Engineer", ListingURL: "https://example.com"}, wantErr: true},
		{name: "valid list", model: &CustomList{Title: "Groceries", UserID: 1}},
		{name: "list blank title", model: &CustomList{Title: "   ", UserID: 1}, wantErr: true},
		{name: "category missing list", model: &ListCategory{Name: "Produce"}, wantErr: true},
		{name: "item missing name", model: &ListItem{CategoryID: 1}, wantErr: true},
		{name: "playlist missing id", model: &Playlist{Title: "x"}, wantErr: true},
		{name: "video missing playlist", model: &Video{ID: "v"}, wantErr: true},
		{name: "credential missing token", model: &YouTubeCredential{UserID: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Validate()
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestUserPassword(t *testing.T) {
	u := &User{Username: "keith", Email: "k@example.com"}

	if u.CheckPassword("anything") {
		t.Error("user without a hash should never match")
	}
	if err := u.SetPassword(""); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty password, got %v", err)
	}
	if err := u.SetPassword("hunter2"); err != nil {
		t.Fatalf("failed to set password: %v", err)
	}
	if u.PasswordHash == "hunter2" {
		t.Error("password should be hashed")
	}
	if !u.CheckPassword("hunter2") {
		t.Error("expected password to match")
	}
	if u.CheckPassword("hunter3") {
		t.Error("expected wrong password to fail")
	}
}

func TestHelpers(t *testing.T) {
	if got := EmbedURL("abc123"); got != "https://www.youtube.com/embed/abc123" {
		t.Errorf("EmbedURL() = %v", got)
	}
	if NullableString("  ") != nil {
		t.Error("expected nil for blank string")
	}
	if v := NullableString(" 2 lbs "); v == nil || *v != "2 lbs" {
		t.Errorf("expected trimmed value, got %v", v)
	}
}
