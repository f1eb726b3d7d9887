package predict

import (
	"fmt"

	"github.com/bbernhard/tumorscan-playground/src/api"
	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
	"github.com/pkg/errors"
)

const (
	FailureNetwork    = "network"
	FailureHTTP       = "http"
	FailureResponse   = "response"
	FailureBusy       = "busy"
	FailureStopped    = "stopped"
	FailureUnexpected = "unexpected"
)

// Failure is the user facing description of a submission that did not produce a result.
type Failure struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Outcome is what a settled submission produced: either a result or a failure.
type Outcome struct {
	Result  *datastructures.PredictionResult
	Failure *Failure
}

func Succeeded(res *datastructures.PredictionResult) Outcome {
	return Outcome{Result: res}
}

func Failed(err error) Outcome {
	return Outcome{Failure: NewFailure(err)}
}

func (o Outcome) Ok() bool {
	return o.Result != nil && o.Failure == nil
}

func NewFailure(err error) *Failure {
	if err == nil {
		return &Failure{Kind: FailureUnexpected, Message: "Unexpected error."}
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case api.KindNetwork:
			return &Failure{
				Kind:    FailureNetwork,
				Message: "The prediction service could not be reached. Please try again later.",
			}
		case api.KindHTTP:
			msg := fmt.Sprintf("The prediction service returned an error (status %d).", apiErr.StatusCode)
			if apiErr.Detail != "" {
				msg = fmt.Sprintf("The prediction service returned an error (status %d): %s", apiErr.StatusCode, apiErr.Detail)
			}
			return &Failure{Kind: FailureHTTP, Message: msg, StatusCode: apiErr.StatusCode}
		default:
			return &Failure{
				Kind:    FailureResponse,
				Message: "The prediction service returned a response that couldn't be understood.",
			}
		}
	}

	switch errors.Cause(err) {
	case ErrQueueFull:
		return &Failure{Kind: FailureBusy, Message: "Too many predictions are running right now - please try again later."}
	case ErrStopped:
		return &Failure{Kind: FailureStopped, Message: "The server is shutting down - please try again later."}
	}

	return &Failure{Kind: FailureUnexpected, Message: "Unexpected error: " + err.Error()}
}
