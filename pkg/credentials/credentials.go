// Package credentials generates the secrets a new site is provisioned with.
package credentials

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/pressops/wpdeploy/pkg/deployerr"
)

const (
	MinPasswordLength     = 16
	DefaultPasswordLength = 24

	MinPrefixLength = 6
	MaxPrefixLength = 8
)

const (
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lower   = "abcdefghijklmnopqrstuvwxyz"
	digits  = "0123456789"
	symbols = "!#%*+,-.:=?@^_~"

	prefixAlphabet = lower + digits
)

var classes = []string{upper, lower, digits, symbols}

// Table prefixes that are guessable or collide with names MySQL and WordPress use themselves.
// Anything starting with "wp" is rejected separately.
var reservedPrefixes = map[string]bool{
	"admin":     true,
	"default":   true,
	"mysql":     true,
	"prefix":    true,
	"schema":    true,
	"sys":       true,
	"test":      true,
	"wordpress": true,
}

// Credentials holds the secrets of one deployment.
type Credentials struct {
	DatabasePassword string `json:"db_password"`
	AdminPassword    string `json:"admin_password"`
	TablePrefix      string `json:"table_prefix"`
}

// Generator draws secrets from a cryptographically secure source.
type Generator struct {
	// Source defaults to crypto/rand.Reader.
	Source io.Reader
}

func New() *Generator {
	return &Generator{Source: rand.Reader}
}

func (g *Generator) source() io.Reader {
	if g == nil || g.Source == nil {
		return rand.Reader
	}
	return g.Source
}

func (g *Generator) intn(n int) (int, error) {
	v, err := rand.Int(g.source(), big.NewInt(int64(n)))
	if err != nil {
		return 0, deployerr.Wrap(deployerr.KindInternal, "entropy", err)
	}
	return int(v.Int64()), nil
}

func (g *Generator) pick(alphabet string) (byte, error) {
	i, err := g.intn(len(alphabet))
	if err != nil {
		return 0, err
	}
	return alphabet[i], nil
}

// Password returns a password of the given length with at least one character of each class.
func (g *Generator) Password(length int) (string, error) {
	if length < MinPasswordLength {
		return "", deployerr.Errorf(deployerr.KindInvalidInput, "password", "length %d is below the minimum of %d", length, MinPasswordLength)
	}

	all := strings.Join(classes, "")
	buf := make([]byte, 0, length)

	for _, class := range classes {
		c, err := g.pick(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	for len(buf) < length {
		c, err := g.pick(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates shuffle.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := g.intn(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

// TablePrefix returns a fresh lowercase alphanumeric prefix of 6 to 8 characters.
// The first character is always a letter.
func (g *Generator) TablePrefix() (string, error) {
	for {
		extra, err := g.intn(MaxPrefixLength - MinPrefixLength + 1)
		if err != nil {
			return "", err
		}
		length := MinPrefixLength + extra

		buf := make([]byte, length)
		buf[0], err = g.pick(lower)
		if err != nil {
			return "", err
		}
		for i := 1; i < length; i++ {
			buf[i], err = g.pick(prefixAlphabet)
			if err != nil {
				return "", err
			}
		}

		prefix := string(buf)
		if !Reserved(prefix) {
			return prefix, nil
		}
	}
}

// Salt returns a random string suitable for a WordPress auth key or salt.
func (g *Generator) Salt(length int) (string, error) {
	all := strings.Join(classes, "")
	buf := make([]byte, length)
	for i := range buf {
		c, err := g.pick(all)
		if err != nil {
			return "", err
		}
		buf[i] = c
	}
	return string(buf), nil
}

// Reserved reports whether a table prefix may not be used.
func Reserved(prefix string) bool {
	return strings.HasPrefix(prefix, "wp") || reservedPrefixes[prefix]
}

// ValidPrefix reports whether prefix satisfies the table prefix policy.
func ValidPrefix(prefix string) bool {
	if len(prefix) < MinPrefixLength || len(prefix) > MaxPrefixLength {
		return false
	}
	if !strings.ContainsRune(lower, rune(prefix[0])) {
		return false
	}
	for _, c := range prefix {
		if !strings.ContainsRune(prefixAlphabet, c) {
			return false
		}
	}
	return !Reserved(prefix)
}

// CheckPassword verifies a password against the generator policy.
func CheckPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("shorter than %d characters", MinPasswordLength)
	}
	names := []string{"uppercase", "lowercase", "digit", "symbol"}
	for i, class := range classes {
		if !strings.ContainsAny(password, class) {
			return fmt.Errorf("contains no %s character", names[i])
		}
	}
	return nil
}

// Generate produces a full set of credentials. Supplied passwords take precedence over
// generated ones; the table prefix is always generated.
func (g *Generator) Generate(databasePassword, adminPassword string) (*Credentials, error) {
	var err error
	creds := &Credentials{
		DatabasePassword: databasePassword,
		AdminPassword:    adminPassword,
	}

	if creds.DatabasePassword == "" {
		creds.DatabasePassword, err = g.Password(DefaultPasswordLength)
		if err != nil {
			return nil, fmt.Errorf("generate database password: %w", err)
		}
	}

	if creds.AdminPassword == "" {
		creds.AdminPassword, err = g.Password(DefaultPasswordLength)
		if err != nil {
			return nil, fmt.Errorf("generate admin password: %w", err)
		}
	}

	creds.TablePrefix, err = g.TablePrefix()
	if err != nil {
		return nil, fmt.Errorf("generate table prefix: %w", err)
	}

	return creds, nil
}
