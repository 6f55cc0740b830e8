package deployclient

import (
	"errors"
	"fmt"
	"io"

	"github.com/pressops/wpdeploy/pkg/output"
)

// PrintResultKey writes a new key suitable for result-key.
func PrintResultKey(w io.Writer) error {
	key, err := output.GenerateKey()
	if err != nil {
		return ErrorWrap(ExitInternalError, err)
	}
	_, err = fmt.Fprintln(w, key)
	return err
}

// OpenResultFile decrypts the file named by cfg.Unseal and renders it, credentials included.
func OpenResultFile(w io.Writer, cfg *Config, color bool) error {
	if len(cfg.ResultKey) == 0 {
		return ErrorWrap(ExitInvocationFailure, ErrUnsealKeyRequired)
	}
	if cfg.Output != output.FormatTable && cfg.Output != output.FormatJSON {
		return ErrorWrap(ExitInvocationFailure, ErrInvalidOutput)
	}

	key, err := output.ParseKey(cfg.ResultKey)
	if err != nil {
		return ErrorWrap(ExitInvocationFailure, ErrMalformedResultKey)
	}

	results, err := output.ReadSealed(cfg.Unseal, key)
	switch {
	case errors.Is(err, output.ErrUnsealFailed):
		return Errorf(ExitIntegrity, "%s: %s", cfg.Unseal, err)
	case err != nil:
		return Errorf(ExitInvocationFailure, "%s: %s", cfg.Unseal, err)
	}

	return output.Render(w, results, output.Options{
		Format: cfg.Output,
		Color:  color,
	})
}
