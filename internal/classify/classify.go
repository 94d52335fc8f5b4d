// Package classify turns a clipboard snapshot into at most one history
// capture. File references win over raw image data, which wins over text.
package classify

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.klb.dev/bepaste/internal/clip"
	"go.klb.dev/bepaste/internal/history"
)

// imageTypes maps recognised raster extensions to their MIME types.
var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// MIMEForPath returns the image MIME type for path's extension, or "".
func MIMEForPath(path string) string {
	return imageTypes[strings.ToLower(filepath.Ext(path))]
}

// Capture is a normalised clipboard change ready for the history store.
type Capture struct {
	Kind    history.Kind
	Payload string
}

// DecodeError reports a candidate that was dropped because it did not hold a
// usable image.
type DecodeError struct {
	Path string // empty for raw clipboard image data
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("clipboard image: %v", e.Err)
	}
	return fmt.Sprintf("image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Classifier decides what a snapshot holds.
type Classifier struct {
	// ReadFile reads referenced files. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// New returns a Classifier reading from the local file system.
func New() *Classifier {
	return &Classifier{ReadFile: os.ReadFile}
}

// Classify returns the highest-priority capture in s. ok is false when the
// snapshot holds nothing worth recording. dropped joins the *DecodeError of
// every candidate that was skipped on the way; it is informational only.
func (c *Classifier) Classify(s clip.Snapshot) (capture Capture, ok bool, dropped error) {
	var errs []error

	if s.Has(clip.FormatURIList) {
		for _, uri := range s.URIs {
			cp, err := c.fromFileRef(uri)
			if err == nil {
				return cp, true, errors.Join(errs...)
			}
			if !errors.Is(err, errNotImage) {
				errs = append(errs, err)
			}
		}
	}

	if len(s.Image) > 0 {
		data, err := ToPNG(s.Image)
		if err == nil {
			return Capture{Kind: history.KindImage, Payload: EncodeDataURI("image/png", data)}, true, errors.Join(errs...)
		}
		errs = append(errs, &DecodeError{Err: err})
	}

	if strings.TrimSpace(s.Text) != "" {
		return Capture{Kind: history.KindText, Payload: s.Text}, true, errors.Join(errs...)
	}
	return Capture{}, false, errors.Join(errs...)
}

var errNotImage = errors.New("not an image file")

func (c *Classifier) fromFileRef(uri string) (Capture, error) {
	path, err := ResolveFileURI(uri)
	if err != nil {
		return Capture{}, &DecodeError{Path: uri, Err: err}
	}
	mime := MIMEForPath(path)
	if mime == "" {
		return Capture{}, errNotImage
	}
	readFile := c.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	data, err := readFile(path)
	if err != nil {
		return Capture{}, &DecodeError{Path: path, Err: err}
	}
	if err := verifyImage(data); err != nil {
		return Capture{}, &DecodeError{Path: path, Err: err}
	}
	slog.Debug("captured referenced image", "path", path, "mime", mime)
	return Capture{Kind: history.KindImage, Payload: EncodeDataURI(mime, data)}, nil
}

// ResolveFileURI turns a file:// URI (or a bare absolute path) into a local
// path. Percent-escapes are decoded and a "localhost" host is accepted.
func ResolveFileURI(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if !strings.Contains(uri, "://") {
		if filepath.IsAbs(uri) {
			return uri, nil
		}
		return "", fmt.Errorf("not a file reference: %q", uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("remote file host %q", u.Host)
	}
	p := u.Path
	if p == "" {
		return "", fmt.Errorf("empty path in %q", uri)
	}
	// file:///C:/Users/x.png → C:/Users/x.png
	if runtime.GOOS == "windows" && len(p) > 2 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}

func verifyImage(data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if img.Bounds().Empty() {
		return errors.New("empty image")
	}
	return nil
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// ToPNG returns data unchanged when it is already a non-empty PNG, and
// otherwise decodes it and re-encodes it as PNG.
func ToPNG(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	if format == "png" && bytes.HasPrefix(data, pngSignature) {
		return data, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
