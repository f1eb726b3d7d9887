package datastructures

import (
	"strings"
)

// NegativeClass is the label the prediction service uses when no tumor was found.
const NegativeClass = "notumor"

type PredictionResult struct {
	Id                 string             `json:"_id,omitempty"`
	Prediction         string             `json:"prediction" validate:"required"`
	Confidence         float64            `json:"confidence" validate:"gte=0,lte=1"`
	ModelAccuracy      float64            `json:"model_accuracy" validate:"gte=0,lte=100"`
	Diagnosis          string             `json:"diagnosis" validate:"required"`
	TumorType          string             `json:"tumor_type,omitempty"`
	TumorInfo          string             `json:"tumor_info,omitempty"`
	ClassProbabilities ClassProbabilities `json:"class_probabilities" validate:"required,min=1,dive"`
	ImageName          string             `json:"image_name,omitempty"`
	PredictionDate     *Timestamp         `json:"prediction_date,omitempty"`
}

// HasTumor reports whether the predicted class is anything other than the negative class.
func (p PredictionResult) HasTumor() bool {
	return !strings.EqualFold(p.Prediction, NegativeClass)
}

type TumorTypeStatistics struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Statistics struct {
	TotalPredictions int                            `json:"total_predictions" validate:"gte=0"`
	TumorTypes       map[string]TumorTypeStatistics `json:"tumor_types"`
	HasTumor         int                            `json:"has_tumor" validate:"gte=0"`
	NoTumor          int                            `json:"no_tumor" validate:"gte=0"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type Report struct {
	Report string `json:"report"`
}
