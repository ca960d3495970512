package domain

import "time"

// Tag is an entry of the tag catalog that scheduled queries reference by ID.
type Tag struct {
	ID        string
	Name      string
	Color     string
	CreatedBy string
	CreatedAt time.Time
}

// TagID returns the tag identifier; it lets catalog entries be passed
// wherever a tag reference is expected.
func (t Tag) TagID() string { return t.ID }

// CreateTagRequest holds parameters for creating a new tag.
type CreateTagRequest struct {
	Name  string
	Color string
}

// Validate checks that the request is well-formed.
func (r *CreateTagRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("tag name is required")
	}
	return nil
}
