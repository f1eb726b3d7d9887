package session

import (
	"context"
	"encoding/json"
	"time"

	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
	"github.com/bbernhard/tumorscan-playground/src/predict"
)

type SelectedFile struct {
	PreviewId   string `json:"preview_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// PageState is everything the prediction page shows for one visitor.
type PageState struct {
	SessionId string                           `json:"session_id"`
	File      *SelectedFile                    `json:"file,omitempty"`
	Loading   bool                             `json:"loading"`
	Result    *datastructures.PredictionResult `json:"result,omitempty"`
	Failure   *predict.Failure                 `json:"failure,omitempty"`
	UpdatedAt time.Time                        `json:"updated_at"`
}

func newPageState(id string) *PageState {
	return &PageState{SessionId: id}
}

// Store keeps page states. Update runs fn against the current state and
// persists the result atomically; an error from fn leaves the state untouched.
// fn may run more than once when concurrent updates collide.
type Store interface {
	Load(ctx context.Context, id string) (*PageState, error)
	Update(ctx context.Context, id string, fn func(*PageState) error) (*PageState, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

func encode(st *PageState) ([]byte, error) {
	return json.Marshal(st)
}

func decode(id string, data []byte) (*PageState, error) {
	st := newPageState(id)
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	st.SessionId = id
	return st, nil
}
