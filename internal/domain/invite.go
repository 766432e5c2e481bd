package domain

// InviteRequest is the body of an invite call.
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role" validate:"required,oneof=admin member"`
}

// InviteNotice is returned after a successful invite.
// DefaultPassword is shown to the admin once and never stored.
type InviteNotice struct {
	Email           string `json:"email"`
	Role            Role   `json:"role"`
	DefaultPassword string `json:"-"`
}

// LoginRequest is the body of a login call.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
