package models

import "time"

// UpdateStatus is the lifecycle state Buffer reports for an update.
type UpdateStatus string

const (
	StatusBuffer     UpdateStatus = "buffer"
	StatusSent       UpdateStatus = "sent"
	StatusCompliance UpdateStatus = "compliance"
)

// User is the account behind an access token.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Plan       string `json:"plan,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	CreatedAt  int64  `json:"created_at,omitempty"`
	ActivityAt int64  `json:"activity_at,omitempty"`
}

type Schedule struct {
	Days  []string `json:"days"`
	Times []string `json:"times"`
}

type ProfileStatistics struct {
	Followers int `json:"followers"`
}

// Profile is a social account connected to Buffer.
type Profile struct {
	ID                string            `json:"id"`
	Avatar            string            `json:"avatar"`
	CreatedAt         int64             `json:"created_at"`
	Default           bool              `json:"default"`
	FormattedService  string            `json:"formatted_service"`
	FormattedUsername string            `json:"formatted_username"`
	Schedules         []Schedule        `json:"schedules"`
	Service           string            `json:"service"`
	ServiceID         string            `json:"service_id"`
	ServiceUsername   string            `json:"service_username"`
	Statistics        ProfileStatistics `json:"statistics"`
	Timezone          string            `json:"timezone"`
	UserID            string            `json:"user_id"`
}

// Media is link or image metadata attached to an update.
type Media struct {
	Link        string `json:"link,omitempty"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// IsZero reports whether no media field is set.
func (m Media) IsZero() bool {
	return m == Media{}
}

type UpdateStatistics struct {
	Clicks    int  `json:"clicks"`
	Favorites int  `json:"favorites"`
	Mentions  int  `json:"mentions"`
	Reach     int  `json:"reach"`
	Retweets  int  `json:"retweets"`
	Likes     *int `json:"likes,omitempty"`
	Comments  *int `json:"comments,omitempty"`
}

// Update is a scheduled or sent post.
type Update struct {
	ID              string            `json:"id"`
	CreatedAt       float64           `json:"created_at"`
	Day             string            `json:"day,omitempty"`
	DueAt           float64           `json:"due_at"`
	DueTime         string            `json:"due_time,omitempty"`
	Media           *Media            `json:"media,omitempty"`
	ProfileID       string            `json:"profile_id"`
	ProfileService  string            `json:"profile_service"`
	SentAt          float64           `json:"sent_at,omitempty"`
	ServiceUpdateID string            `json:"service_update_id,omitempty"`
	Statistics      *UpdateStatistics `json:"statistics,omitempty"`
	Status          UpdateStatus      `json:"status"`
	Text            string            `json:"text"`
	TextFormatted   string            `json:"text_formatted"`
	UserID          string            `json:"user_id"`
	Via             string            `json:"via"`
	ServiceLink     string            `json:"service_link,omitempty"`
}

// CreateUpdateOptions are the arguments of updates/create.
type CreateUpdateOptions struct {
	ProfileIDs []string `json:"profile_ids"`
	Text       string   `json:"text"`
	// Now sends the update immediately instead of queueing it.
	Now bool `json:"now,omitempty"`
	// Top puts the update at the head of the queue.
	Top   bool   `json:"top,omitempty"`
	Media *Media `json:"media,omitempty"`
	// ScheduledAt is a UTC timestamp string understood by Buffer.
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

type UpdateResponse struct {
	Success          bool     `json:"success"`
	BufferCount      int      `json:"buffer_count"`
	BufferPercentage float64  `json:"buffer_percentage"`
	Updates          []Update `json:"updates"`
	Message          string   `json:"message,omitempty"`
}

type UpdatesList struct {
	Total   int      `json:"total"`
	Updates []Update `json:"updates"`
}

type ShuffleResponse struct {
	Success bool     `json:"success"`
	Updates []Update `json:"updates"`
}

// ProxyCall is the audit record of one request handled by the edge router.
// It never carries the credential itself, only where it came from.
type ProxyCall struct {
	ID               string        `json:"id"`
	RequestID        string        `json:"request_id"`
	Method           string        `json:"method"`
	Path             string        `json:"path"`
	Route            string        `json:"route,omitempty"`
	Status           int           `json:"status"`
	Duration         time.Duration `json:"duration"`
	CredentialSource string        `json:"credential_source,omitempty"`
	CalledAt         time.Time     `json:"called_at"`
}

// Day is the partition key used by the audit store.
func (c ProxyCall) Day() string {
	return c.CalledAt.UTC().Format("2006-01-02")
}
