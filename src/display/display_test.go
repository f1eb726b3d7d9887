package display

import (
	"encoding/json"
	"testing"

	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gliomaResult(t *testing.T) *datastructures.PredictionResult {
	var res datastructures.PredictionResult
	require.NoError(t, json.Unmarshal([]byte(`{
		"prediction": "glioma",
		"confidence": 0.92,
		"model_accuracy": 97,
		"diagnosis": "Tumor detected",
		"tumor_type": "Glioma",
		"tumor_info": "A tumor that originates from glial cells in the brain or spine.",
		"class_probabilities": {"glioma": 0.92, "notumor": 0.03, "meningioma": 0.03, "pituitary": 0.02},
		"prediction_date": "2024-03-01T10:20:30.123456"
	}`), &res))
	return &res
}

func TestEmptyView(t *testing.T) {
	view := NewView()
	assert.True(t, view.Empty)
	assert.Equal(t, "No predictions available", view.EmptyTitle)
	assert.Empty(t, view.Cards)

	view = NewView(nil)
	assert.True(t, view.Empty)
}

func TestGliomaCard(t *testing.T) {
	view := NewView(gliomaResult(t))
	require.False(t, view.Empty)
	require.Len(t, view.Cards, 1)

	card := view.Cards[0]
	assert.Equal(t, "Tumor detected", card.Diagnosis)
	assert.Equal(t, "92.00%", card.Confidence)
	assert.Equal(t, "97%", card.ModelAccuracy)
	assert.Equal(t, ToneDanger, card.Tone)
	assert.True(t, card.ShowTumorDetail)
	assert.Equal(t, "Glioma", card.TumorType)
	assert.Equal(t, "2024-03-01 10:20:30", card.Date)

	require.Len(t, card.Bars, 4)
	assert.Equal(t, Bar{Class: "glioma", Label: "92.0%", Width: "92.00%", Tone: ToneInfo}, card.Bars[0])
	assert.Equal(t, Bar{Class: "notumor", Label: "3.0%", Width: "3.00%", Tone: ToneSafe}, card.Bars[1])
	assert.Equal(t, "meningioma", card.Bars[2].Class)
	assert.Equal(t, "2.00%", card.Bars[3].Width)
}

func TestNegativeClassHidesTumorDetail(t *testing.T) {
	res := gliomaResult(t)
	res.Prediction = datastructures.NegativeClass
	res.TumorType = "N/A"

	card := NewCard(res)
	assert.Equal(t, ToneSafe, card.Tone)
	assert.False(t, card.ShowTumorDetail)
	assert.Empty(t, card.TumorType)
	assert.Empty(t, card.TumorInfo)
}

func TestBarWidthIsProportional(t *testing.T) {
	cases := map[float64]string{
		0:     "0.00%",
		0.5:   "50.00%",
		0.125: "12.50%",
		1:     "100.00%",
		1.2:   "100.00%",
		-0.1:  "0.00%",
	}
	for probability, want := range cases {
		assert.Equal(t, want, BarWidth(probability), "probability %v", probability)
	}
}

func TestMissingOptionalFields(t *testing.T) {
	card := NewCard(&datastructures.PredictionResult{
		Prediction: "pituitary",
		Confidence: 0.5,
		Diagnosis:  "Brain tumor detected.",
	})
	assert.Empty(t, card.Date)
	assert.Empty(t, card.Bars)
	assert.True(t, card.ShowTumorDetail)
	assert.Empty(t, card.TumorType)
}

func TestStatisticsView(t *testing.T) {
	view := NewStatisticsView(&datastructures.Statistics{
		TotalPredictions: 6,
		HasTumor:         4,
		NoTumor:          2,
		TumorTypes: map[string]datastructures.TumorTypeStatistics{
			"glioma":     {Count: 3, Percentage: 50},
			"notumor":    {Count: 2, Percentage: 33.333},
			"meningioma": {Count: 1, Percentage: 16.667},
		},
	})

	assert.Equal(t, 6, view.Total)
	require.Len(t, view.Rows, 3)
	assert.Equal(t, "glioma", view.Rows[0].Label)
	assert.Equal(t, "50.00%", view.Rows[0].Percentage)
	assert.Equal(t, ToneSafe, view.Rows[1].Tone)
	assert.Equal(t, "16.67%", view.Rows[2].Percentage)
}
