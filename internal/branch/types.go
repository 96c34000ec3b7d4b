package branch

import "time"

// Branch is one tenant: a physical location with its own channel session,
// attendant instructions, and knowledge entries.
type Branch struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone,omitempty"`
	City            string    `json:"city,omitempty"`
	State           string    `json:"state,omitempty"`
	Address         string    `json:"address,omitempty"`
	Responsible     string    `json:"responsible,omitempty"`
	WorkingHours    string    `json:"working_hours,omitempty"`
	BotInstructions string    `json:"bot_instructions,omitempty"`
	Active          bool      `json:"active"`
	Infos           []Info    `json:"infos,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Info is one free-form knowledge entry surfaced to the model.
type Info struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

// CreateBranchRequest is the input for creating a branch.
type CreateBranchRequest struct {
	Name            string `json:"name" validate:"required,min=1"`
	Phone           string `json:"phone,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	Address         string `json:"address,omitempty"`
	Responsible     string `json:"responsible,omitempty"`
	WorkingHours    string `json:"working_hours,omitempty"`
	BotInstructions string `json:"bot_instructions,omitempty"`
	Active          *bool  `json:"active,omitempty"`
}

// UpdateBranchRequest is the input for updating a branch. Nil fields are
// left unchanged.
type UpdateBranchRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Phone           *string `json:"phone,omitempty"`
	City            *string `json:"city,omitempty"`
	State           *string `json:"state,omitempty"`
	Address         *string `json:"address,omitempty"`
	Responsible     *string `json:"responsible,omitempty"`
	WorkingHours    *string `json:"working_hours,omitempty"`
	BotInstructions *string `json:"bot_instructions,omitempty"`
	Active          *bool   `json:"active,omitempty"`
}

// CreateInfoRequest is the input for adding a knowledge entry.
type CreateInfoRequest struct {
	Title    string `json:"title" validate:"required,min=1"`
	Content  string `json:"content" validate:"required,min=1"`
	Category string `json:"category,omitempty"`
}

// UpdateInfoRequest is the input for updating a knowledge entry.
type UpdateInfoRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1"`
	Content  *string `json:"content,omitempty" validate:"omitempty,min=1"`
	Category *string `json:"category,omitempty"`
}

// ListBranchesResponse wraps a list of branches.
type ListBranchesResponse struct {
	Items []Branch `json:"items"`
}
