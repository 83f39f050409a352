package snapshot

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/FanyNavas/Sentara.Api/internal/apperr"
)

// Purpose prefixes the stored file name so operators can tell images apart.
type Purpose string

const (
	PurposeAttendance   Purpose = "attendance"
	PurposeManualUpload Purpose = "manual-upload"
	PurposeManualLive   Purpose = "manual-live"
)

// ErrInvalidName is returned by Open for names outside the naming scheme.
var ErrInvalidName = errors.New("invalid snapshot name")

var namePattern = regexp.MustCompile(`^(attendance|manual-upload|manual-live)_[0-9a-f]{32}\.png$`)

// Codec decodes data-URL images and stores them as files in Dir.
type Codec struct {
	Dir string
}

// New creates a codec writing into dir. The directory is created on first write.
func New(dir string) *Codec {
	return &Codec{Dir: dir}
}

// Decode stores the image carried by dataURL and returns its file name.
// dataURL is either raw base64 or "data:<mime>;base64,<payload>".
// A blank input (or blank payload) yields (nil, nil). Malformed base64 and
// write failures yield a DECODE error and no file.
func (c *Codec) Decode(dataURL string, purpose Purpose) (*string, error) {
	if strings.TrimSpace(dataURL) == "" {
		return nil, nil
	}

	payload := dataURL
	if i := strings.IndexByte(dataURL, ','); i >= 0 {
		payload = dataURL[i+1:]
	}
	payload = stripSpace(payload)
	if payload == "" {
		return nil, nil
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, apperr.Decode("invalid image data URL", err)
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, apperr.Decode("create snapshot dir", err)
	}

	name := fmt.Sprintf("%s_%s.png", purpose, newToken())
	if err := writeNew(filepath.Join(c.Dir, name), data); err != nil {
		return nil, apperr.Decode("write snapshot", err)
	}
	return &name, nil
}

// Path returns the full path of a stored image.
func (c *Codec) Path(name string) string {
	return filepath.Join(c.Dir, name)
}

// Open returns the path of a stored image after checking that name is one this
// codec could have produced and that the file exists.
func (c *Codec) Open(name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	p := c.Path(name)
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}

// ValidName reports whether name follows the <purpose>_<token>.png scheme.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

func stripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// writeNew refuses to overwrite an existing file.
func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
