package transport

import (
	"io"

	"github.com/pkg/sftp"
)

// sftpFiles adapts *sftp.Client to probe.FileChannel. The client is owned by
// the session and closed with it.
type sftpFiles struct {
	client *sftp.Client
}

func (f *sftpFiles) Create(path string) (io.WriteCloser, error) {
	return f.client.Create(path)
}

func (f *sftpFiles) Open(path string) (io.ReadCloser, error) {
	return f.client.Open(path)
}

func (f *sftpFiles) Remove(path string) error {
	return f.client.Remove(path)
}
