package credentials

import (
	"time"
)

// TestStatus values for a connection's last known health.
const (
	StatusActive  = "active"
	StatusError   = "error"
	StatusUnknown = "unknown"
)

// Auth types.
const (
	AuthAPIKey = "apikey"
	AuthOAuth  = "oauth"
)

// Connection is one stored account for a provider.
type Connection struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	AuthType string `json:"authType"`
	Name     string `json:"name,omitempty"`

	// Priority orders connections within a provider; lower wins.
	// GlobalPriority, when set, orders across providers and takes
	// precedence.
	Priority       int  `json:"priority,omitempty"`
	GlobalPriority *int `json:"globalPriority,omitempty"`

	// DefaultModel overrides the requested model for this connection.
	DefaultModel string `json:"defaultModel,omitempty"`

	// Secret material.
	APIKey       string    `json:"apiKey,omitempty"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	IDToken      string    `json:"idToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`

	// Provider-specific data.
	ProfileArn   string `json:"profileArn,omitempty"`
	BaseURL      string `json:"baseUrl,omitempty"`
	APIType      string `json:"apiType,omitempty"`
	ProjectID    string `json:"projectId,omitempty"`
	AuthMethod   string `json:"authMethod,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`

	// Operational state.
	TestStatus    string    `json:"testStatus,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
	LastErrorAt   time.Time `json:"lastErrorAt,omitempty"`
	CooldownUntil time.Time `json:"cooldownUntil,omitempty"`
	Failures      int       `json:"failures,omitempty"`
	IsActive      bool      `json:"isActive"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Clone returns a deep copy; GlobalPriority is the only pointer field.
func (c *Connection) Clone() *Connection {
	out := *c
	if c.GlobalPriority != nil {
		gp := *c.GlobalPriority
		out.GlobalPriority = &gp
	}
	return &out
}

// Eligible reports whether the connection may serve a request now.
func (c *Connection) Eligible(excludeID string, now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if excludeID != "" && c.ID == excludeID {
		return false
	}
	return !now.Before(c.CooldownUntil)
}

// NeedsRefresh reports whether the access token is within buffer of
// expiry. Connections without an access token or expiry never refresh
// proactively.
func (c *Connection) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.Sub(now) < buffer
}

// Tokens is the result of a credential refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    time.Duration

	// Provider-specific fields some refresh flows return.
	ProfileArn string
	ProjectID  string
}

// Apply folds refreshed tokens into the connection. The refresh token
// is reused when the provider omitted a new one.
func (c *Connection) Apply(t *Tokens, now time.Time) {
	c.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		c.RefreshToken = t.RefreshToken
	}
	if t.IDToken != "" {
		c.IDToken = t.IDToken
	}
	if t.ExpiresIn > 0 {
		c.ExpiresAt = now.Add(t.ExpiresIn)
	}
	if t.ProfileArn != "" {
		c.ProfileArn = t.ProfileArn
	}
	if t.ProjectID != "" {
		c.ProjectID = t.ProjectID
	}
}

// Redacted returns a copy with all secret material stripped, for admin
// responses and logs.
func (c *Connection) Redacted() *Connection {
	out := c.Clone()
	out.APIKey = ""
	out.AccessToken = ""
	out.RefreshToken = ""
	out.IDToken = ""
	return out
}
