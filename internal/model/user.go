package model

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"bio"`
	AvatarURL    string    `json:"avatar_url"`
	IsOnline     bool      `json:"is_online"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserPublic is the profile shape attached to messages and member lists.
type UserPublic struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	Phone      string    `json:"phone"`
	AvatarURL  string    `json:"avatar_url"`
	Bio        string    `json:"bio"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:         u.ID,
		Name:       u.Name,
		Username:   u.Username,
		Phone:      u.Phone,
		AvatarURL:  u.AvatarURL,
		Bio:        u.Bio,
		IsOnline:   u.IsOnline,
		LastSeenAt: u.LastSeenAt,
	}
}
