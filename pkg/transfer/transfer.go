// Package transfer moves local archives into the hosting account and proves they arrived intact.
package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/uapi"
	log "github.com/sirupsen/logrus"
)

// Number of times a transfer is attempted when the remote checksum does not match.
const MaxTransfers = 2

type Remote interface {
	UploadFile(ctx context.Context, dir, name string, content []byte) error
	Exec(ctx context.Context, command string) (string, error)
}

type Service struct {
	Remote Remote
	Log    *log.Entry
}

// Upload describes a file that was stored remotely and verified.
type Upload struct {
	RemotePath string `json:"remote_path"`
	Checksum   string `json:"sha256"`
	Size       int64  `json:"size"`
	Attempts   int    `json:"attempts"`
}

func New(remote Remote) *Service {
	return &Service{
		Remote: remote,
		Log:    log.NewEntry(log.StandardLogger()),
	}
}

// Upload copies a local file to remoteDir/name. An empty name keeps the local base name.
func (s *Service) Upload(ctx context.Context, localPath, remoteDir, name string) (*Upload, error) {
	if name == "" {
		name = filepath.Base(localPath)
	}
	op := "upload " + name

	info, err := os.Stat(localPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, deployerr.Errorf(deployerr.KindInvalidInput, op, "local archive %s does not exist", localPath)
	case err != nil:
		return nil, deployerr.Wrap(deployerr.KindInvalidInput, op, err)
	case info.IsDir():
		return nil, deployerr.Errorf(deployerr.KindInvalidInput, op, "local archive %s is a directory", localPath)
	case info.Size() == 0:
		return nil, deployerr.Errorf(deployerr.KindInvalidInput, op, "local archive %s is empty", localPath)
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return nil, deployerr.Wrap(deployerr.KindInvalidInput, op, err)
	}

	return s.UploadContent(ctx, name, content, remoteDir)
}

// UploadContent stores content as remoteDir/name and verifies its checksum,
// transferring a second time if the first copy arrived damaged.
func (s *Service) UploadContent(ctx context.Context, name string, content []byte, remoteDir string) (*Upload, error) {
	op := "upload " + name
	if len(content) == 0 {
		return nil, deployerr.Errorf(deployerr.KindInvalidInput, op, "refusing to upload empty file")
	}
	if !path.IsAbs(remoteDir) {
		return nil, deployerr.Errorf(deployerr.KindInvalidInput, op, "remote directory %s is not absolute", remoteDir)
	}

	sum := sha256.Sum256(content)
	expected := hex.EncodeToString(sum[:])
	remotePath := path.Join(remoteDir, name)
	logger := s.logger().WithField("file", remotePath)

	var remote string
	for attempt := 1; attempt <= MaxTransfers; attempt++ {
		if err := s.Remote.UploadFile(ctx, remoteDir, name, content); err != nil {
			return nil, deployerr.Wrap(deployerr.KindOf(err), op, err)
		}

		var err error
		remote, err = s.remoteChecksum(ctx, remotePath)
		if err != nil {
			return nil, deployerr.Wrap(deployerr.KindOf(err), op, err)
		}

		if remote == expected {
			logger.Debugf("Transfer verified after %d attempt(s)", attempt)
			return &Upload{
				RemotePath: remotePath,
				Checksum:   expected,
				Size:       int64(len(content)),
				Attempts:   attempt,
			}, nil
		}

		logger.Warnf("Checksum mismatch on attempt %d of %d", attempt, MaxTransfers)
	}

	return nil, deployerr.Errorf(deployerr.KindIntegrity, op, "checksum mismatch after %d transfers: local %s, remote %s", MaxTransfers, expected, remote)
}

func (s *Service) remoteChecksum(ctx context.Context, remotePath string) (string, error) {
	output, err := s.Remote.Exec(ctx, fmt.Sprintf("sha256sum %s", uapi.Quote(remotePath)))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return "", deployerr.New(deployerr.KindRemote, "sha256sum", "empty checksum output")
	}
	return strings.ToLower(fields[0]), nil
}

func (s *Service) logger() *log.Entry {
	if s.Log == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return s.Log
}
