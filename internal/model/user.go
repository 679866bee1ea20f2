// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"github.com/sakif/chat-directory/internal/avatar"
)

// User represents a registered account.
//
// WHY PasswordHash HAS json:"-":
// The struct is passed around every layer, and a careless writeJSON(w, user)
// must never leak the hash. The tag makes the encoder skip it unconditionally.
//
// Avatar holds raw image bytes; AvatarType is the MIME type they were
// uploaded with. Both are empty for users without a photo.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	Avatar       []byte    `json:"-"         db:"avatar"`
	AvatarType   string    `json:"-"         db:"avatar_type"`
	IsAdmin      bool      `json:"isAdmin"   db:"is_admin"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser is the projection of a User that other users may see.
type PublicUser struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Avatar *avatar.Payload `json:"avatar,omitempty"`
}

// Public projects u for the directory.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: avatar.Encode(u.Avatar, u.AvatarType),
	}
}
