package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds the settings for issuing and verifying HS256 access tokens.
type AuthConfig struct {
	Secret     string        `koanf:"secret"`
	Issuer     string        `koanf:"issuer"`
	Audience   string        `koanf:"audience"`
	TokenTTL   time.Duration `koanf:"tokenttl"`
	BcryptCost int           `koanf:"bcryptcost"`
}

const minSecretLength = 32
const defaultTokenTTL = 3 * time.Hour

// String returns a string representation of the auth configuration. The secret is never printed.
func (c *AuthConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Auth ---\n")
	b.WriteString("  secret: ****\n")
	b.WriteString(fmt.Sprintf("  issuer: %s\n", c.Issuer))
	b.WriteString(fmt.Sprintf("  audience: %s\n", c.Audience))
	b.WriteString(fmt.Sprintf("  tokenttl: %s\n", c.TokenTTL))
	b.WriteString(fmt.Sprintf("  bcryptcost: %d\n", c.BcryptCost))
	return b.String()
}

func (c *AuthConfig) Validate() error {
	if len(c.Secret) < minSecretLength {
		return fmt.Errorf("auth secret must be at least %d characters long", minSecretLength)
	}
	if c.Issuer == "" {
		return fmt.Errorf("auth issuer cannot be empty")
	}
	if c.Audience == "" {
		return fmt.Errorf("auth audience cannot be empty")
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}
