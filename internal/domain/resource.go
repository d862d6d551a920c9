package domain

import "time"

// KindResource names generic resources in cache keys and topics.
const KindResource = "resource"

// Resource is the generic entity managed through the CRUD endpoints.
type Resource struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithName returns a copy carrying the new name.
func (r Resource) WithName(name string) Resource {
	r.Name = name
	return r
}
