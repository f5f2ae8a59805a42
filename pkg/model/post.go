package model

import (
	"encoding/base64"
	"fmt"
	"io"
)

// Post is the backend's projection of a blog post. It is never cached
// beyond the command that fetched it.
type Post struct {
	ID        int64     `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	ImageData string    `json:"image_data,omitempty" yaml:"image_data,omitempty"` // base64
	CreatedAt Timestamp `json:"created_at" yaml:"created_at"`
	UpdatedAt Timestamp `json:"updated_at" yaml:"updated_at"`
	AuthorID  int64     `json:"author_id" yaml:"author_id"`
	Author    *User     `json:"author" yaml:"author"`
}

// HasImage reports whether the post carries an image payload.
func (p *Post) HasImage() bool {
	return p.ImageData != ""
}

// DecodeImage returns the raw image bytes.
func (p *Post) DecodeImage() ([]byte, error) {
	if !p.HasImage() {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(p.ImageData)
	if err != nil {
		return nil, fmt.Errorf("decode image of post %d: %w", p.ID, err)
	}
	return data, nil
}

// Edited reports whether the post was updated after creation.
func (p *Post) Edited() bool {
	return !p.UpdatedAt.IsZero() && !p.UpdatedAt.Equal(p.CreatedAt.Time)
}

// AuthorName returns the author's username, or "unknown" when the backend
// did not embed one.
func (p *Post) AuthorName() string {
	if p.Author == nil || p.Author.Username == "" {
		return "unknown"
	}
	return p.Author.Username
}

// PostInput carries the multipart fields for creating or updating a post.
// Empty strings and a nil Image are omitted from updates.
type PostInput struct {
	Title     string
	Content   string
	Image     io.Reader
	ImageName string
}
