package deployerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	for _, testCase := range []struct {
		name string
		err  error
		kind deployerr.Kind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), deployerr.KindInternal},
		{"classified", deployerr.New(deployerr.KindIntegrity, "upload", "checksum mismatch"), deployerr.KindIntegrity},
		{"wrapped twice", fmt.Errorf("stage: %w", deployerr.New(deployerr.KindResourceConflict, "Mysql/create_database", "exists")), deployerr.KindResourceConflict},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.kind, deployerr.KindOf(testCase.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := deployerr.Errorf(deployerr.KindRemote, "Mysql/create_user", "password too weak (%d)", 3)
	assert.EqualError(t, err, "Mysql/create_user: password too weak (3)")

	err = deployerr.New(deployerr.KindInvalidInput, "", "domain required")
	assert.EqualError(t, err, "domain required")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, deployerr.Wrap(deployerr.KindRemote, "op", nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, deployerr.Retryable(deployerr.New(deployerr.KindTransientNetwork, "op", "503")))
	assert.False(t, deployerr.Retryable(deployerr.New(deployerr.KindAuthentication, "op", "401")))
	assert.False(t, deployerr.Retryable(deployerr.New(deployerr.KindResourceConflict, "op", "exists")))
	assert.False(t, deployerr.Retryable(errors.New("unclassified")))
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("root cause")
	err := deployerr.Wrap(deployerr.KindRemote, "op", sentinel)
	assert.ErrorIs(t, err, sentinel)
}
