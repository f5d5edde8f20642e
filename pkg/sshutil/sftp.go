package sshutil

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"github.com/rileyhilliard/rig/internal/errors"
	"github.com/rileyhilliard/rig/internal/ui"
)

// CopyTo uploads the local file to remotePath over SFTP on the shell's
// connection, creating the remote parent directory if needed. It holds the
// connection like a command does. In dry-run mode it only prints what it
// would upload.
func (s *Shell) CopyTo(localPath, remotePath string) error {
	msg := fmt.Sprintf("upload %s -> %s", localPath, remotePath)
	if s.dryRunMode.Load() {
		ui.DryRunNotice(s.opts.out, msg)
		return nil
	}

	src, err := os.Open(localPath)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Can't open %s for upload", localPath),
			"Check the path exists and is readable.")
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't stat %s", localPath))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return errors.New(errors.ErrSSH,
			fmt.Sprintf("Connection to %s is closed", s.remoteName),
			"Open a new shell or call Reconnect.")
	}

	ui.HostCommand(s.opts.out, s.username+"@"+s.remoteName, msg)

	client, err := sftp.NewClient(s.client)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to start SFTP session",
			"The remote sshd may have the sftp subsystem disabled.")
	}
	defer client.Close()

	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Can't create %s on %s", path.Dir(remotePath), s.remoteName),
			"Check the remote user can write there.")
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Can't create %s on %s", remotePath, s.remoteName),
			"Check the remote user can write there.")
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Upload of %s was interrupted", localPath))
	}
	if err := dst.Chmod(info.Mode().Perm()); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't set mode on %s", remotePath))
	}

	s.opts.log.Debug("uploaded %d bytes to %s:%s", n, s.remote, remotePath)
	return nil
}
