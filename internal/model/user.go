package model

import "time"

// Curator roles.  Members may use the public API with a session; admins
// may additionally create cities and cinemas and trigger catalog
// maintenance.
const (
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// User is a curator account as stored in the `users` table.  Hint
// submission and voting stay anonymous; accounts only gate the admin
// surface.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or MEMBER.
//  IsActive     – inactive accounts cannot log in.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
}
