package model

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestListOptions_Clamp(t *testing.T) {
	tests := []struct {
		in, want ListOptions
	}{
		{ListOptions{Skip: 0, Limit: 0}, ListOptions{Skip: 0, Limit: DefaultLimit}},
		{ListOptions{Skip: -5, Limit: 20}, ListOptions{Skip: 0, Limit: 20}},
		{ListOptions{Skip: 10, Limit: 500}, ListOptions{Skip: 10, Limit: MaxLimit}},
	}
	for _, tt := range tests {
		got := tt.in
		got.Clamp()
		if got != tt.want {
			t.Errorf("Clamp(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPageOptions(t *testing.T) {
	opts := PageOptions(3, PostsPerPage)
	if opts.Skip != 18 || opts.Limit != 9 {
		t.Errorf("PageOptions(3, 9) = %+v, want skip 18 limit 9", opts)
	}
	opts = PageOptions(0, PostsPerPage)
	if opts.Skip != 0 {
		t.Errorf("PageOptions(0, 9).Skip = %d, want 0", opts.Skip)
	}

	tests := []struct {
		page, perPage int
		want          ListOptions
		wantPage      int
	}{
		{3, 0, ListOptions{Skip: 20, Limit: DefaultLimit}, 3},
		{3, -5, ListOptions{Skip: 20, Limit: DefaultLimit}, 3},
		{2, 500, ListOptions{Skip: 100, Limit: MaxLimit}, 2},
		{1, 500, ListOptions{Skip: 0, Limit: MaxLimit}, 1},
	}
	for _, tt := range tests {
		got := PageOptions(tt.page, tt.perPage)
		if got != tt.want {
			t.Errorf("PageOptions(%d, %d) = %+v, want %+v", tt.page, tt.perPage, got, tt.want)
		}
		p := Page{Skip: got.Skip, Limit: got.Limit}
		if n := p.PageNumber(); n != tt.wantPage {
			t.Errorf("PageOptions(%d, %d) lands on page %d, want %d", tt.page, tt.perPage, n, tt.wantPage)
		}
	}
}

func TestPage_Counts(t *testing.T) {
	p := Page{Skip: 18, Limit: 9, Total: 20}
	if got := p.PageNumber(); got != 3 {
		t.Errorf("PageNumber() = %d, want 3", got)
	}
	if got := p.PageCount(); got != 3 {
		t.Errorf("PageCount() = %d, want 3", got)
	}
	p.Total = -1
	if got := p.PageCount(); got != -1 {
		t.Errorf("PageCount() with unknown total = %d, want -1", got)
	}
}

func TestPost_Image(t *testing.T) {
	p := Post{ID: 1}
	if p.HasImage() {
		t.Error("HasImage() = true for post without image")
	}
	data, err := p.DecodeImage()
	if err != nil || data != nil {
		t.Errorf("DecodeImage() = %v, %v; want nil, nil", data, err)
	}

	p.ImageData = base64.StdEncoding.EncodeToString([]byte("\x89PNG"))
	data, err = p.DecodeImage()
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if string(data) != "\x89PNG" {
		t.Errorf("DecodeImage() = %q", data)
	}

	p.ImageData = "%%%"
	if _, err := p.DecodeImage(); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestPost_EditedAndAuthor(t *testing.T) {
	now := time.Now()
	p := Post{CreatedAt: Timestamp{now}, UpdatedAt: Timestamp{now}}
	if p.Edited() {
		t.Error("Edited() = true for untouched post")
	}
	p.UpdatedAt = Timestamp{now.Add(time.Minute)}
	if !p.Edited() {
		t.Error("Edited() = false after update")
	}
	if got := p.AuthorName(); got != "unknown" {
		t.Errorf("AuthorName() = %q, want unknown", got)
	}
	p.Author = &User{ID: 2, Username: "alice"}
	if got := p.AuthorName(); got != "alice" {
		t.Errorf("AuthorName() = %q, want alice", got)
	}
}

func TestUser_CloneAndValid(t *testing.T) {
	var nilUser *User
	if nilUser.Valid() {
		t.Error("nil user reported valid")
	}
	if nilUser.Clone() != nil {
		t.Error("Clone of nil user should be nil")
	}
	u := &User{ID: 7, Username: "bob"}
	c := u.Clone()
	c.Username = "eve"
	if u.Username != "bob" {
		t.Error("Clone shares memory with original")
	}
}
