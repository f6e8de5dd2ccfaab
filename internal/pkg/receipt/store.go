package receipt

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Store writes uploaded payment receipts under baseDir/YYYY/MM and returns
// paths relative to baseDir. Receipts are served back by path, never inlined.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Save(c *gin.Context, file *multipart.FileHeader, reference string) (string, error) {
	now := time.Now().UTC()
	rel := filepath.Join(
		now.Format("2006"),
		now.Format("01"),
		fmt.Sprintf("%s-%s%s", sanitize(reference), uuid.NewString(), filepath.Ext(file.Filename)),
	)
	abs := filepath.Join(s.baseDir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	if err := c.SaveUploadedFile(file, abs); err != nil {
		return "", err
	}
	return rel, nil
}

func (s *Store) AbsolutePath(rel string) string {
	return filepath.Join(s.baseDir, filepath.Clean("/"+rel))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
