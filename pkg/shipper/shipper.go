// Package shipper uploads a local directory tree to the remote host as a
// single zip archive and unpacks it there.
package shipper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bacalhau-project/piwakawaka/pkg/archive"
	"github.com/bacalhau-project/piwakawaka/pkg/logger"
	"github.com/bacalhau-project/piwakawaka/pkg/models"
	"github.com/bacalhau-project/piwakawaka/pkg/progress"
)

const DefaultArchiveName = "zipped_dir.zip"

var (
	ErrLocalDirMissing = errors.New("local directory does not exist")
	ErrEmptyRemoteDir  = errors.New("remote directory cannot be empty")
)

// Uploader is the file transfer half of *sshutils.Session.
type Uploader interface {
	PutFile(ctx context.Context, localPath, remotePath string, report progress.Func) error
	EnsureRemoteDir(ctx context.Context, dir string) error
}

// CommandExecutor runs remote commands, as *runner.Runner does.
type CommandExecutor interface {
	Execute(ctx context.Context, command string, echo bool) error
}

type Output interface {
	Warn(w models.Warning)
	Spin(message string) (stop func())
	NewProgress() progress.Func
}

// Options tunes Ship. The zero value deflates and archives the default
// number of directory levels without progress output.
type Options struct {
	ShowProgress bool
	Compression  archive.Compression
	// MaxDepth is the number of directory levels archived. Zero means
	// archive.DefaultMaxDepth and a negative value means all.
	MaxDepth int
	// CreateRemoteDir creates the remote directory before uploading.
	CreateRemoteDir bool
	// EchoRemote prints the output of the unzip and rm commands.
	EchoRemote bool
}

func DefaultOptions() Options {
	return Options{
		ShowProgress: true,
		Compression:  archive.Deflate,
		MaxDepth:     archive.DefaultMaxDepth,
	}
}

type Shipper struct {
	Uploader    Uploader
	Runner      CommandExecutor
	Out         Output
	Logger      *logger.Logger
	ArchiveName string
}

func New(uploader Uploader, runner CommandExecutor, out Output) *Shipper {
	return &Shipper{
		Uploader:    uploader,
		Runner:      runner,
		Out:         out,
		Logger:      logger.Get(),
		ArchiveName: DefaultArchiveName,
	}
}

// Ship archives localDir, uploads the archive into remoteDir and extracts it
// next to remoteDir so that the tree lands at remoteDir's parent under
// localDir's base name. An empty directory is reported as a warning and
// nothing is sent.
func (s *Shipper) Ship(ctx context.Context, localDir, remoteDir string, opts Options) error {
	l := s.log().With(logger.String("local_dir", localDir), logger.String("remote_dir", remoteDir))

	if strings.TrimSpace(remoteDir) == "" {
		return ErrEmptyRemoteDir
	}

	info, err := os.Stat(localDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrLocalDirMissing, localDir)
		}
		return fmt.Errorf("failed to stat %s: %w", localDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrLocalDirMissing, localDir)
	}

	manifest, err := archive.BuildManifest(localDir, opts.MaxDepth)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", localDir, err)
	}
	if len(manifest) == 0 {
		w := models.NewEmptyManifestWarning(localDir, archive.EffectiveMaxDepth(opts.MaxDepth))
		l.Warnf("%s", w.Message)
		s.Out.Warn(w)
		return nil
	}
	l.Infof("Shipping %d files", len(manifest))

	tempDir, err := os.MkdirTemp("", "piwakawaka-ship-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	name := s.archiveName()
	localArchive := filepath.Join(tempDir, name)
	stop := s.Out.Spin(fmt.Sprintf("Creating ZIP file (%d files)", len(manifest)))
	err = archive.WriteZip(localArchive, manifest, opts.Compression)
	stop()
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	if opts.CreateRemoteDir {
		if err := s.Uploader.EnsureRemoteDir(ctx, remoteDir); err != nil {
			return err
		}
	}

	remoteArchive := RemoteArchivePath(remoteDir, name)
	var report progress.Func
	if opts.ShowProgress {
		report = s.Out.NewProgress()
	}
	if err := s.Uploader.PutFile(ctx, localArchive, remoteArchive, report); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	unzip := fmt.Sprintf("unzip -o %s -d %s", shellQuote(remoteArchive), shellQuote(UnpackDir(remoteDir)))
	if err := s.Runner.Execute(ctx, unzip, opts.EchoRemote); err != nil {
		return fmt.Errorf("failed to unpack archive: %w", err)
	}
	if err := s.Runner.Execute(ctx, "rm "+shellQuote(remoteArchive), opts.EchoRemote); err != nil {
		return fmt.Errorf("failed to remove remote archive: %w", err)
	}

	l.Infof("Shipped %s to %s", localDir, UnpackDir(remoteDir))
	return nil
}

// RemoteArchivePath is where the archive is uploaded: inside remoteDir,
// whether or not it ends in a slash.
func RemoteArchivePath(remoteDir, archiveName string) string {
	if !strings.HasSuffix(remoteDir, "/") {
		remoteDir += "/"
	}
	return remoteDir + archiveName
}

// UnpackDir is the parent of remoteDir, where the archive is extracted.
func UnpackDir(remoteDir string) string {
	return path.Dir(path.Clean(remoteDir))
}

func (s *Shipper) archiveName() string {
	if s.ArchiveName == "" {
		return DefaultArchiveName
	}
	return s.ArchiveName
}

func (s *Shipper) log() *logger.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logger.Get()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
