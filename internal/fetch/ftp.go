// Package fetch mirrors instrument exports from the spectrophotometer PC's
// FTP share into the local data root ahead of processing.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"uvabs/internal/metrics"
)

type Config struct {
	Host      string // host:port; empty disables syncing
	User      string
	Password  string
	RemoteDir string
	Timeout   time.Duration
}

type Syncer struct {
	cfg Config
}

func NewSyncer(cfg Config) *Syncer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.User == "" {
		cfg.User = "anonymous"
		cfg.Password = "anonymous"
	}
	return &Syncer{cfg: cfg}
}

func (s *Syncer) Enabled() bool { return s.cfg.Host != "" }

// Sync downloads every .SP file in remote AB* batch folders that is not yet
// present locally. Files already downloaded (or archived after upload) are
// left alone, so repeated syncs are cheap and idempotent.
func (s *Syncer) Sync(ctx context.Context, localRoot string) (int, error) {
	conn, err := ftp.Dial(s.cfg.Host, ftp.DialWithContext(ctx), ftp.DialWithTimeout(s.cfg.Timeout))
	if err != nil {
		return 0, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		return 0, fmt.Errorf("ftp login: %w", err)
	}

	folders, err := conn.List(s.cfg.RemoteDir)
	if err != nil {
		return 0, fmt.Errorf("ftp list %s: %w", s.cfg.RemoteDir, err)
	}

	downloaded := 0
	for _, folder := range folders {
		if folder.Type != ftp.EntryTypeFolder || !strings.HasPrefix(folder.Name, "AB") {
			continue
		}

		remoteDir := path.Join(s.cfg.RemoteDir, folder.Name)
		files, err := conn.List(remoteDir)
		if err != nil {
			return downloaded, fmt.Errorf("ftp list %s: %w", remoteDir, err)
		}

		localDir := filepath.Join(localRoot, folder.Name)
		if err := os.MkdirAll(localDir, 0o755); err != nil {
			return downloaded, fmt.Errorf("create %s: %w", localDir, err)
		}

		for _, file := range files {
			if file.Type != ftp.EntryTypeFile || !strings.EqualFold(path.Ext(file.Name), ".SP") {
				continue
			}
			localPath := filepath.Join(localDir, file.Name)
			if alreadyLocal(localDir, file.Name) {
				continue
			}
			if err := s.download(ctx, conn, path.Join(remoteDir, file.Name), localPath); err != nil {
				return downloaded, err
			}
			downloaded++
			metrics.FilesSynced.Inc()
		}
	}

	if downloaded > 0 {
		log.Printf("fetch: downloaded %d new instrument files", downloaded)
	}
	return downloaded, nil
}

// alreadyLocal reports whether the file exists in the batch folder or has
// been archived to its uploaded/ subfolder.
func alreadyLocal(localDir, name string) bool {
	if _, err := os.Stat(filepath.Join(localDir, name)); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(localDir, "uploaded", name)); err == nil {
		return true
	}
	return false
}

func (s *Syncer) download(ctx context.Context, conn *ftp.ServerConn, remotePath, localPath string) error {
	operation := func() error {
		resp, err := conn.Retr(remotePath)
		if err != nil {
			return fmt.Errorf("ftp retr %s: %w", remotePath, err)
		}
		defer resp.Close()

		tmp := localPath + ".part"
		f, err := os.Create(tmp)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create %s: %w", tmp, err))
		}
		if _, err := io.Copy(f, resp); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("download %s: %w", remotePath, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(tmp)
			return backoff.Permanent(fmt.Errorf("close %s: %w", tmp, err))
		}
		return os.Rename(tmp, localPath)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}
