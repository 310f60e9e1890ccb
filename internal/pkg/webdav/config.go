package webdav

import (
	"errors"
	"strings"
	"time"
)

// Config defines the WebDAV client configuration
type Config struct {
	// BaseURL is the WebDAV endpoint, e.g.
	// https://ucloud.example.org/public.php/webdav
	BaseURL string `mapstructure:"base_url"`

	// ShareToken is sent as the basic-auth username with an empty
	// password, the public-share convention of ownCloud/Nextcloud.
	ShareToken string `mapstructure:"share_token"`

	// Timeout bounds metadata requests (MKCOL, DELETE).
	Timeout time.Duration `mapstructure:"timeout"`

	// UploadTimeout bounds PUT requests carrying file payloads.
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
}

// SetDefaults fills zero-valued fields with defaults
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UploadTimeout == 0 {
		c.UploadTimeout = 5 * time.Minute
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("webdav base URL is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.New("webdav base URL must start with http:// or https://")
	}
	if c.ShareToken == "" {
		return errors.New("webdav share token is required")
	}
	return nil
}
