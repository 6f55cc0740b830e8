package logging

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

const Redacted = "***REDACTED***"

// Secrets shorter than this are not registered; replacing them would mangle ordinary words.
// Callers accepting secrets from users must refuse anything shorter.
const MinSecretLength = 4

// Redactor is a logrus hook that scrubs registered secrets from log entries.
// It is safe for concurrent use by several deployments.
type Redactor struct {
	lock    sync.RWMutex
	secrets map[string]struct{}
}

func NewRedactor() *Redactor {
	return &Redactor{
		secrets: make(map[string]struct{}),
	}
}

// Add registers secrets. Empty and very short values are ignored.
func (r *Redactor) Add(secrets ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, secret := range secrets {
		if len(secret) < MinSecretLength {
			continue
		}
		r.secrets[secret] = struct{}{}
	}
}

// Redact replaces every registered secret in s.
func (r *Redactor) Redact(s string) string {
	if r == nil || s == "" {
		return s
	}

	r.lock.RLock()
	secrets := make([]string, 0, len(r.secrets))
	for secret := range r.secrets {
		secrets = append(secrets, secret)
	}
	r.lock.RUnlock()

	// Longest first, so a secret containing another is replaced whole.
	sort.Slice(secrets, func(i, j int) bool {
		return len(secrets[i]) > len(secrets[j])
	})
	for _, secret := range secrets {
		s = strings.ReplaceAll(s, secret, Redacted)
	}
	return s
}

func (r *Redactor) Levels() []log.Level {
	return log.AllLevels
}

func (r *Redactor) Fire(entry *log.Entry) error {
	entry.Message = r.Redact(entry.Message)

	for key, value := range entry.Data {
		switch v := value.(type) {
		case string:
			entry.Data[key] = r.Redact(v)
		case error:
			entry.Data[key] = r.Redact(v.Error())
		case fmt.Stringer:
			entry.Data[key] = r.Redact(v.String())
		}
	}

	return nil
}
