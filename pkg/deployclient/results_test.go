package deployclient_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pressops/wpdeploy/pkg/deployclient"
	"github.com/pressops/wpdeploy/pkg/output"
	"github.com/pressops/wpdeploy/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sealedResults(t *testing.T, key string) string {
	t.Helper()
	parsed, err := output.ParseKey(key)
	require.NoError(t, err)

	result := succeeded(pipeline.Request{Domain: "shop.example.com"})
	result.Credentials = &pipeline.Credentials{
		DatabaseName:     "acme_shop_example_com",
		DatabaseUser:     "acme_shop_example_com",
		DatabasePassword: "Vb3%Tq8*Ne5=Hs1?Jk",
		AdminUser:        "shopkeeper",
		AdminPassword:    "Gq7!kd-Zp2#xW9@rLm4^",
		TablePrefix:      "kq3x9a",
	}

	path := filepath.Join(t.TempDir(), "result.sealed")
	require.NoError(t, output.WriteSealed(path, []*pipeline.Result{result}, parsed))
	return path
}

func TestResultKeyFlags(t *testing.T) {
	cfg, _, err := deployclient.LoadConfig([]string{"--generate-result-key"})
	require.NoError(t, err)
	assert.True(t, cfg.GenerateResultKey)

	cfg, _, err = deployclient.LoadConfig([]string{"--unseal", "result.sealed", "--result-key", "k"})
	require.NoError(t, err)
	assert.Equal(t, "result.sealed", cfg.Unseal)
}

func TestOpenResultFile(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, deployclient.PrintResultKey(buf))
	key := strings.TrimSpace(buf.String())
	_, err := output.ParseKey(key)
	require.NoError(t, err)

	path := sealedResults(t, key)

	out := &bytes.Buffer{}
	cfg := &deployclient.Config{Unseal: path, ResultKey: key, Output: output.FormatJSON}
	require.NoError(t, deployclient.OpenResultFile(out, cfg, false))

	opened := &pipeline.Result{}
	require.NoError(t, json.Unmarshal(out.Bytes(), opened))
	assert.Equal(t, "shop.example.com", opened.Domain)
	require.NotNil(t, opened.Credentials)
	assert.Equal(t, "Gq7!kd-Zp2#xW9@rLm4^", opened.Credentials.AdminPassword)

	out.Reset()
	cfg.Output = output.FormatTable
	require.NoError(t, deployclient.OpenResultFile(out, cfg, false))
	assert.Contains(t, out.String(), "shopkeeper")
}

func TestOpenResultFileFailures(t *testing.T) {
	key, err := output.GenerateKey()
	require.NoError(t, err)
	other, err := output.GenerateKey()
	require.NoError(t, err)
	path := sealedResults(t, key)

	for _, tc := range []struct {
		name string
		cfg  deployclient.Config
		code deployclient.ExitCode
	}{
		{"missing key", deployclient.Config{Unseal: path, Output: output.FormatJSON}, deployclient.ExitInvocationFailure},
		{"malformed key", deployclient.Config{Unseal: path, ResultKey: "not a key", Output: output.FormatJSON}, deployclient.ExitInvocationFailure},
		{"wrong key", deployclient.Config{Unseal: path, ResultKey: other, Output: output.FormatJSON}, deployclient.ExitIntegrity},
		{"missing file", deployclient.Config{Unseal: filepath.Join(t.TempDir(), "absent"), ResultKey: key, Output: output.FormatJSON}, deployclient.ExitInvocationFailure},
		{"bad output", deployclient.Config{Unseal: path, ResultKey: key, Output: "xml"}, deployclient.ExitInvocationFailure},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			err := deployclient.OpenResultFile(out, &tc.cfg, false)
			assert.Equal(t, tc.code, deployclient.ErrorExitCode(err), "got %v", err)
			assert.Empty(t, out.String())
		})
	}
}
