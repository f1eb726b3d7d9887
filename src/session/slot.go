package session

import (
	"context"
	"io"

	"github.com/bbernhard/tumorscan-playground/src/predict"
	"github.com/bbernhard/tumorscan-playground/src/preview"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNoFileSelected     = errors.New("no image selected")
	ErrSubmissionInFlight = errors.New("a prediction is already running")
)

// Slot is the upload widget: it holds at most one selected image per session
// and owns that image's preview for as long as it is selected.
type Slot struct {
	store    Store
	previews *preview.Store
}

func NewSlot(store Store, previews *preview.Store) *Slot {
	return &Slot{store: store, previews: previews}
}

func (s *Slot) State(ctx context.Context, id string) (*PageState, error) {
	return s.store.Load(ctx, id)
}

// Select makes the upload the session's only selected file. The preview of a
// replaced file is released once the new selection is stored.
func (s *Slot) Select(ctx context.Context, id string, name string, contentType string, r io.Reader) (*PageState, error) {
	p, err := s.previews.Create(name, contentType, r)
	if err != nil {
		return nil, err
	}

	var replaced string
	st, err := s.store.Update(ctx, id, func(st *PageState) error {
		replaced = ""
		if st.File != nil {
			replaced = st.File.PreviewId
		}
		st.File = &SelectedFile{
			PreviewId:   p.Id,
			Name:        p.Name,
			ContentType: p.ContentType,
			Size:        p.Size,
			Width:       p.Width,
			Height:      p.Height,
		}
		st.Failure = nil
		return nil
	})
	if err != nil {
		s.release(p.Id)
		return nil, err
	}

	if replaced != "" && replaced != p.Id {
		s.release(replaced)
	}
	return st, nil
}

// Remove drops the selected file, if any, and releases its preview.
func (s *Slot) Remove(ctx context.Context, id string) (*PageState, error) {
	var removed string
	st, err := s.store.Update(ctx, id, func(st *PageState) error {
		removed = ""
		if st.File != nil {
			removed = st.File.PreviewId
		}
		st.File = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	if removed != "" {
		s.release(removed)
	}
	return st, nil
}

// Upload returns the selected file together with its original bytes.
func (s *Slot) Upload(ctx context.Context, id string) (*SelectedFile, []byte, error) {
	st, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if st.File == nil {
		return nil, nil, ErrNoFileSelected
	}

	data, err := s.previews.ReadAll(st.File.PreviewId)
	if err != nil {
		return nil, nil, errors.Wrap(err, "couldn't read selected image")
	}
	return st.File, data, nil
}

// Thumbnail returns the path of the selected file's thumbnail.
func (s *Slot) Thumbnail(ctx context.Context, id string) (string, error) {
	st, err := s.store.Load(ctx, id)
	if err != nil {
		return "", err
	}
	if st.File == nil {
		return "", ErrNoFileSelected
	}
	return s.previews.ThumbnailPath(st.File.PreviewId)
}

// BeginSubmit marks the session as loading. It refuses when there is nothing
// to submit or when a submission is still in flight.
func (s *Slot) BeginSubmit(ctx context.Context, id string) (*PageState, error) {
	return s.store.Update(ctx, id, func(st *PageState) error {
		if st.File == nil {
			return ErrNoFileSelected
		}
		if st.Loading {
			return ErrSubmissionInFlight
		}
		st.Loading = true
		st.Failure = nil
		return nil
	})
}

// Settle ends a submission. Loading is always cleared; a failure leaves the
// previously shown result in place.
func (s *Slot) Settle(ctx context.Context, id string, outcome predict.Outcome) (*PageState, error) {
	return s.store.Update(ctx, id, func(st *PageState) error {
		st.Loading = false
		if outcome.Ok() {
			st.Result = outcome.Result
			st.Failure = nil
			return nil
		}

		st.Failure = outcome.Failure
		if st.Failure == nil {
			st.Failure = predict.NewFailure(nil)
		}
		return nil
	})
}

func (s *Slot) release(previewId string) {
	if err := s.previews.Release(previewId); err != nil {
		log.Error("[Session] Couldn't release preview ", previewId, ": ", err.Error())
	}
}
