package display

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
)

const (
	ToneDanger = "danger"
	ToneSafe   = "safe"
	ToneInfo   = "info"

	EmptyTitle = "No predictions available"
	EmptyHint  = "Upload an MRI scan to get started"

	dateLayout = "2006-01-02 15:04:05"
)

type Bar struct {
	Class string
	Label string
	Width string
	Tone  string
}

// Card is one rendered prediction result.
type Card struct {
	Id              string
	Diagnosis       string
	Prediction      string
	Confidence      string
	ModelAccuracy   string
	Tone            string
	ShowTumorDetail bool
	TumorType       string
	TumorInfo       string
	Bars            []Bar
	ImageName       string
	Date            string
}

type View struct {
	Empty      bool
	EmptyTitle string
	EmptyHint  string
	Cards      []Card
}

func NewView(results ...*datastructures.PredictionResult) View {
	var cards []Card
	for _, res := range results {
		if res == nil {
			continue
		}
		cards = append(cards, NewCard(res))
	}

	if len(cards) == 0 {
		return View{Empty: true, EmptyTitle: EmptyTitle, EmptyHint: EmptyHint}
	}
	return View{Cards: cards}
}

func NewCard(res *datastructures.PredictionResult) Card {
	card := Card{
		Id:            res.Id,
		Diagnosis:     res.Diagnosis,
		Prediction:    res.Prediction,
		Confidence:    Percent(res.Confidence, 2),
		ModelAccuracy: strconv.FormatFloat(res.ModelAccuracy, 'f', -1, 64) + "%",
		Tone:          ToneSafe,
		ImageName:     res.ImageName,
	}

	if res.HasTumor() {
		card.Tone = ToneDanger
		card.ShowTumorDetail = true
		card.TumorType = res.TumorType
		card.TumorInfo = res.TumorInfo
	}

	card.Bars = make([]Bar, 0, len(res.ClassProbabilities))
	for _, p := range res.ClassProbabilities {
		tone := ToneInfo
		if p.Class == datastructures.NegativeClass {
			tone = ToneSafe
		}
		card.Bars = append(card.Bars, Bar{
			Class: p.Class,
			Label: Percent(p.Probability, 1),
			Width: BarWidth(p.Probability),
			Tone:  tone,
		})
	}

	if res.PredictionDate != nil && !res.PredictionDate.IsZero() {
		card.Date = res.PredictionDate.Format(dateLayout)
	}
	return card
}

// Percent formats a 0..1 fraction as a percentage with the given precision.
func Percent(fraction float64, precision int) string {
	return strconv.FormatFloat(fraction*100, 'f', precision, 64) + "%"
}

// BarWidth maps a probability onto a CSS width, clamped to 0..100%.
func BarWidth(probability float64) string {
	switch {
	case probability < 0:
		probability = 0
	case probability > 1:
		probability = 1
	}
	return fmt.Sprintf("%.2f%%", probability*100)
}

type StatisticsRow struct {
	Label      string
	Count      int
	Percentage string
	Tone       string
}

type StatisticsView struct {
	Total    int
	HasTumor int
	NoTumor  int
	Rows     []StatisticsRow
}

// NewStatisticsView orders the per-class rows by count, most frequent first.
func NewStatisticsView(stats *datastructures.Statistics) StatisticsView {
	view := StatisticsView{
		Total:    stats.TotalPredictions,
		HasTumor: stats.HasTumor,
		NoTumor:  stats.NoTumor,
	}

	for label, s := range stats.TumorTypes {
		tone := ToneDanger
		if strings.EqualFold(label, datastructures.NegativeClass) {
			tone = ToneSafe
		}
		view.Rows = append(view.Rows, StatisticsRow{
			Label:      label,
			Count:      s.Count,
			Percentage: strconv.FormatFloat(s.Percentage, 'f', 2, 64) + "%",
			Tone:       tone,
		})
	}

	sort.Slice(view.Rows, func(i, j int) bool {
		if view.Rows[i].Count != view.Rows[j].Count {
			return view.Rows[i].Count > view.Rows[j].Count
		}
		return view.Rows[i].Label < view.Rows[j].Label
	})
	return view
}
