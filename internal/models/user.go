package models

import "fmt"

// User is a Farcaster account as embedded in feed API casts
type User struct {
	FID         uint64  `json:"fid" validate:"gt=0"`
	Username    string  `json:"username,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	PfpURL      string  `json:"pfp_url,omitempty"`
	Profile     Profile `json:"profile"`
}

// Profile holds the user's profile fields
type Profile struct {
	Bio Bio `json:"bio"`
}

// Bio holds the profile bio
type Bio struct {
	Text string `json:"text"`
}

// PlaceholderUser is returned for authors the archive has never seen.
// Lookups of unknown authors never fail; they resolve to this.
func PlaceholderUser(fid uint64) *UserRecord {
	return &UserRecord{
		FID:         fid,
		Username:    fmt.Sprintf("unknown-%d", fid),
		DisplayName: "unknown",
		Placeholder: true,
	}
}
