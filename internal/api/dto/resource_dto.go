package dto

// CreateResourceRequest payload for new resources.
type CreateResourceRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// UpdateResourceRequest renames a resource. ID, when present, must match the path.
type UpdateResourceRequest struct {
	ID   string `json:"id" validate:"omitempty,uuid"`
	Name string `json:"name" validate:"required,max=200"`
}

// ResourceResponse is the public view of a resource.
type ResourceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
