package agents

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

// fileStore handles durable copies under DATA_DIR and the post-run cleanup
// of original inputs.
type fileStore struct {
	dataDir string
	log     *logger.Logger
	now     func() time.Time
	newUID  func() string
}

func newFileStore(dataDir string, log *logger.Logger) *fileStore {
	return &fileStore{
		dataDir: dataDir,
		log:     log,
		now:     time.Now,
		newUID:  func() string { return uuid.NewString() },
	}
}

// DurableName builds "{user_id}_{unix_ts}_{8-hex-uuid}_{base}{ext}".
func DurableName(userID string, at time.Time, uid, originalPath string) string {
	ext := filepath.Ext(originalPath)
	base := strings.TrimSuffix(filepath.Base(originalPath), ext)
	short := strings.ReplaceAll(uid, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%d_%s_%s%s", userID, at.Unix(), short, base, ext)
}

// Save verifies the source exists and copies it into dataDir/subdir under a
// durable name. A missing or unreadable source is fatal; a failed copy is
// not, the pipeline falls back to processing the original path in place.
func (fs *fileStore) Save(subdir, sourcePath, userID string) (string, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return "", stageErrf(StageSave, "source file not accessible: %w", err)
	}

	destDir := filepath.Join(fs.dataDir, subdir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		fs.log.Warn("Failed to create durable dir, processing original in place",
			"dir", destDir, "error", err)
		return sourcePath, nil
	}

	destPath := filepath.Join(destDir, DurableName(userID, fs.now(), fs.newUID(), sourcePath))
	if err := copyFile(sourcePath, destPath); err != nil {
		fs.log.Warn("Failed to copy file to durable storage, processing original in place",
			"source", sourcePath, "dest", destPath, "error", err)
		return sourcePath, nil
	}
	return destPath, nil
}

// Cleanup removes the original input when it differs from the durable copy.
// Best-effort; the durable copy is never touched.
func (fs *fileStore) Cleanup(originalPath, durablePath string) {
	if originalPath == "" || originalPath == durablePath {
		return
	}
	if err := os.Remove(originalPath); err != nil && !os.IsNotExist(err) {
		fs.log.Warn("Failed to remove original input", "path", originalPath, "error", err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
