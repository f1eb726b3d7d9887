package preview

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	ThumbnailWidth  = 320
	ThumbnailHeight = 320

	thumbnailSuffix = ".thumb.jpg"
)

var (
	ErrNotAnImage = errors.New("file must be an image")
	ErrNotFound   = errors.New("preview not found")
	ErrTooLarge   = errors.New("file is too large")
)

// Preview is the on-disk copy of a selected upload plus its thumbnail.
type Preview struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Store keeps previews in a single directory. Every preview it creates has to
// be given back through Release; Sweep collects the ones that never were.
type Store struct {
	dir     string
	maxSize int64
}

func NewStore(dir string, maxSize int64) (*Store, error) {
	//previews are temporary, the directory might be gone (e.q if it lives in /tmp and the server reboots)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Debug("[Preview] Creating directory for previews as it doesn't exist")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "couldn't create previews directory")
		}
	}

	return &Store{dir: dir, maxSize: maxSize}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Create validates that r holds a decodable image and stores it along with a thumbnail.
func (s *Store) Create(name string, contentType string, r io.Reader) (*Preview, error) {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, ErrNotAnImage
	}

	if s.maxSize > 0 {
		r = io.LimitReader(r, s.maxSize+1)
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't read upload")
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debug("[Preview] Couldn't decode upload: ", err.Error())
		return nil, ErrNotAnImage
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "couldn't generate preview id")
	}

	p := &Preview{
		Id:          id.String(),
		Name:        filepath.Base(name),
		ContentType: contentType,
		Size:        int64(len(data)),
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
	}

	if err := ioutil.WriteFile(s.uploadPath(p.Id), data, 0644); err != nil {
		return nil, errors.Wrap(err, "couldn't save upload")
	}

	thumb := imaging.Fit(img, ThumbnailWidth, ThumbnailHeight, imaging.Lanczos)
	if err := imaging.Save(thumb, s.thumbnailPath(p.Id)); err != nil {
		s.Release(p.Id)
		return nil, errors.Wrap(err, "couldn't save thumbnail")
	}

	log.Debug("[Preview] Created preview ", p.Id, " for ", p.Name)
	return p, nil
}

// Open returns the original upload of a preview.
func (s *Store) Open(id string) (io.ReadCloser, error) {
	if !validId(id) {
		return nil, ErrNotFound
	}
	f, err := os.Open(s.uploadPath(id))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return f, err
}

// ReadAll returns the original upload bytes of a preview.
func (s *Store) ReadAll(id string) ([]byte, error) {
	f, err := s.Open(id)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ioutil.ReadAll(f)
}

func (s *Store) ThumbnailPath(id string) (string, error) {
	if !validId(id) {
		return "", ErrNotFound
	}
	path := s.thumbnailPath(id)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

// Release removes the upload and its thumbnail. Releasing an unknown preview is a no-op.
func (s *Store) Release(id string) error {
	if !validId(id) {
		return nil
	}

	var firstErr error
	for _, path := range []string{s.uploadPath(id), s.thumbnailPath(id)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Debug("[Preview] Couldn't remove file ", err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Sweep releases every preview whose files are older than maxAge and returns how many were removed.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := ioutil.ReadDir(s.dir)
	if err != nil {
		return 0, errors.Wrap(err, "couldn't list previews")
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), thumbnailSuffix) {
			continue
		}
		if !validId(entry.Name()) || entry.ModTime().After(cutoff) {
			continue
		}
		if err := s.Release(entry.Name()); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *Store) uploadPath(id string) string {
	return filepath.Join(s.dir, id)
}

func (s *Store) thumbnailPath(id string) string {
	return filepath.Join(s.dir, id+thumbnailSuffix)
}

func validId(id string) bool {
	_, err := uuid.FromString(id)
	return err == nil
}
