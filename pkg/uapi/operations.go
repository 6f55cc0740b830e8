package uapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"regexp"
	"strings"

	"github.com/pressops/wpdeploy/pkg/deployerr"
)

// Operation names one UAPI function together with the parameters it cannot do without.
type Operation struct {
	Module   string
	Function string
	Required []string
}

var (
	CreateDatabase = Operation{Module: "Mysql", Function: "create_database", Required: []string{"name"}}
	CreateUser     = Operation{Module: "Mysql", Function: "create_user", Required: []string{"name", "password"}}
	SetPrivileges  = Operation{Module: "Mysql", Function: "set_privileges_on_database", Required: []string{"user", "database", "privileges"}}
	ExecCommand    = Operation{Module: "Execute", Function: "exec", Required: []string{"command"}}
	UploadFiles    = Operation{Module: "Fileman", Function: "upload_files", Required: []string{"dir"}}
)

// Operations is the allow-list of everything the deployer may call.
var Operations = map[string]Operation{
	CreateDatabase.String(): CreateDatabase,
	CreateUser.String():     CreateUser,
	SetPrivileges.String():  SetPrivileges,
	ExecCommand.String():    ExecCommand,
	UploadFiles.String():    UploadFiles,
}

// Privileges granted to the site's database user on its own database only.
var SitePrivileges = []string{
	"SELECT",
	"INSERT",
	"UPDATE",
	"DELETE",
	"CREATE",
	"DROP",
	"ALTER",
	"INDEX",
	"CREATE TEMPORARY TABLES",
	"LOCK TABLES",
}

const (
	MaxDatabaseNameLength = 64
	MaxDatabaseUserLength = 32
)

var invalidNameChars = regexp.MustCompile(`[^a-z0-9_]+`)

func (op Operation) String() string {
	return op.Module + "/" + op.Function
}

func (op Operation) path() string {
	return "/execute/" + op.Module + "/" + op.Function
}

func (op Operation) validate(params map[string]string) error {
	if _, ok := Operations[op.String()]; !ok {
		return deployerr.Errorf(deployerr.KindInvalidInput, op.String(), "operation is not allowed")
	}
	for _, key := range op.Required {
		if params[key] == "" {
			return deployerr.Errorf(deployerr.KindInvalidInput, op.String(), "missing required parameter '%s'", key)
		}
	}
	return nil
}

// Qualify turns name into a cPanel database identifier: lowercase, [a-z0-9_] only,
// prefixed with the account name and cut to limit characters.
func Qualify(username, name string, limit int) string {
	prefix := strings.ToLower(username) + "_"
	name = invalidNameChars.ReplaceAllString(strings.ToLower(name), "_")
	name = strings.Trim(name, "_")
	if !strings.HasPrefix(name, prefix) {
		name = prefix + name
	}
	if len(name) > limit {
		name = strings.TrimRight(name[:limit], "_")
	}
	return name
}

func (c *Client) DatabaseName(name string) string {
	return Qualify(c.username, name, MaxDatabaseNameLength)
}

func (c *Client) DatabaseUserName(name string) string {
	return Qualify(c.username, name, MaxDatabaseUserLength)
}

func (c *Client) CreateDatabase(ctx context.Context, name string) error {
	_, err := c.Execute(ctx, CreateDatabase, map[string]string{
		"name": name,
	})
	return err
}

func (c *Client) CreateDatabaseUser(ctx context.Context, name, password string) error {
	_, err := c.Execute(ctx, CreateUser, map[string]string{
		"name":     name,
		"password": password,
	})
	return err
}

func (c *Client) GrantPrivileges(ctx context.Context, user, database string, privileges []string) error {
	_, err := c.Execute(ctx, SetPrivileges, map[string]string{
		"user":       user,
		"database":   database,
		"privileges": strings.Join(privileges, ","),
	})
	return err
}

type execResult struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

// Exec runs a shell command in the account context and returns its output.
// A non-zero exit status is a remote failure; the command itself is never echoed.
func (c *Client) Exec(ctx context.Context, command string) (string, error) {
	response, err := c.Execute(ctx, ExecCommand, map[string]string{
		"command": command,
	})
	if err != nil {
		return "", err
	}

	var output string
	if err := json.Unmarshal(response.Data, &output); err == nil {
		return output, nil
	}

	result := &execResult{}
	if err := json.Unmarshal(response.Data, result); err != nil {
		return "", deployerr.Errorf(deployerr.KindRemote, ExecCommand.String(), "malformed command result: %s", err)
	}
	if result.ExitCode != 0 {
		return result.Output, deployerr.Errorf(deployerr.KindRemote, ExecCommand.String(), "command exited with status %d: %s", result.ExitCode, truncate(result.Output))
	}
	return result.Output, nil
}

type uploadResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Uploads   []struct {
		File   string `json:"file"`
		Reason string `json:"reason"`
		Status int    `json:"status"`
	} `json:"uploads"`
}

// UploadFile stores content as dir/name, replacing any existing file.
func (c *Client) UploadFile(ctx context.Context, dir, name string, content []byte) error {
	params := map[string]string{
		"dir":       dir,
		"overwrite": "1",
	}
	if err := UploadFiles.validate(params); err != nil {
		return err
	}
	if name == "" {
		return deployerr.New(deployerr.KindInvalidInput, UploadFiles.String(), "missing file name")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, key := range paramKeys(params) {
		if err := writer.WriteField(key, params[key]); err != nil {
			return deployerr.Wrap(deployerr.KindInternal, UploadFiles.String(), err)
		}
	}
	part, err := writer.CreateFormFile("file-1", name)
	if err != nil {
		return deployerr.Wrap(deployerr.KindInternal, UploadFiles.String(), err)
	}
	if _, err := part.Write(content); err != nil {
		return deployerr.Wrap(deployerr.KindInternal, UploadFiles.String(), err)
	}
	if err := writer.Close(); err != nil {
		return deployerr.Wrap(deployerr.KindInternal, UploadFiles.String(), err)
	}

	response, err := c.call(ctx, UploadFiles, append(paramKeys(params), "file-1"), writer.FormDataContentType(), body.Bytes())
	if err != nil {
		return err
	}

	result := &uploadResult{}
	if err := json.Unmarshal(response.Data, result); err != nil {
		return deployerr.Errorf(deployerr.KindRemote, UploadFiles.String(), "malformed upload result: %s", err)
	}
	if result.Failed > 0 || result.Succeeded == 0 {
		reasons := make([]string, 0, len(result.Uploads))
		for _, upload := range result.Uploads {
			if upload.Reason != "" {
				reasons = append(reasons, upload.Reason)
			}
		}
		return deployerr.Errorf(deployerr.KindRemote, UploadFiles.String(), "upload of %s rejected: %s", name, strings.Join(reasons, "; "))
	}

	c.Metrics.Uploaded(int64(len(content)))
	return nil
}

// MakeDirectory creates path and any missing parents.
func (c *Client) MakeDirectory(ctx context.Context, path string, mode uint32) error {
	_, err := c.Exec(ctx, fmt.Sprintf("mkdir -p -m %o %s", mode, Quote(path)))
	return err
}

// SetPermissions applies dirMode to every directory and fileMode to every file below root.
func (c *Client) SetPermissions(ctx context.Context, root string, dirMode, fileMode uint32) error {
	command := fmt.Sprintf(
		"find %[1]s -type d -exec chmod %[2]o {} + && find %[1]s -type f -exec chmod %[3]o {} +",
		Quote(root), dirMode, fileMode,
	)
	_, err := c.Exec(ctx, command)
	return err
}

func (c *Client) Chmod(ctx context.Context, path string, mode uint32) error {
	_, err := c.Exec(ctx, fmt.Sprintf("chmod %o %s", mode, Quote(path)))
	return err
}

func (c *Client) RemovePath(ctx context.Context, path string) error {
	_, err := c.Exec(ctx, fmt.Sprintf("rm -rf %s", Quote(path)))
	return err
}

// Quote wraps s in single quotes for the remote POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
