package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/pressops/wpdeploy/pkg/pipeline"
)

// Sealed result files are meant to be opened long after the run.
const sealedTTL = time.Hour * 24 * 365 * 100

var ErrUnsealFailed = errors.New("sealed result is invalid or was sealed with another key")

// ParseKey decodes a fernet key as printed by GenerateKey.
func ParseKey(key string) (*fernet.Key, error) {
	if key == "" {
		return nil, fmt.Errorf("result key cannot be empty")
	}
	k, err := fernet.DecodeKey(key)
	if err != nil {
		return nil, fmt.Errorf("invalid result key: %w", err)
	}
	return k, nil
}

func GenerateKey() (string, error) {
	key := &fernet.Key{}
	if err := key.Generate(); err != nil {
		return "", fmt.Errorf("generate result key: %w", err)
	}
	return key.Encode(), nil
}

// Seal encrypts the complete results, credentials included.
func Seal(results []*pipeline.Result, key *fernet.Key) ([]byte, error) {
	plaintext, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("serialize results: %w", err)
	}
	token, err := fernet.EncryptAndSign(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("seal results: %w", err)
	}
	return token, nil
}

func Unseal(token []byte, key *fernet.Key) ([]*pipeline.Result, error) {
	plaintext := fernet.VerifyAndDecrypt(bytes.TrimSpace(token), sealedTTL, []*fernet.Key{key})
	if plaintext == nil {
		return nil, ErrUnsealFailed
	}
	results := make([]*pipeline.Result, 0)
	if err := json.Unmarshal(plaintext, &results); err != nil {
		return nil, fmt.Errorf("deserialize results: %w", err)
	}
	return results, nil
}

// ReadSealed opens a file written by WriteSealed.
func ReadSealed(path string, key *fernet.Key) ([]*pipeline.Result, error) {
	token, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sealed result: %w", err)
	}
	return Unseal(token, key)
}

// WriteSealed writes the sealed results to path, readable by the owner only.
func WriteSealed(path string, results []*pipeline.Result, key *fernet.Key) error {
	token, err := Seal(results, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(token, '\n'), 0o600); err != nil {
		return fmt.Errorf("write sealed result: %w", err)
	}
	return nil
}
