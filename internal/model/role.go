package model

// UserRole is resolved by the calling layer (JWT claims); this module only
// routes on it, it does not authenticate.
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
