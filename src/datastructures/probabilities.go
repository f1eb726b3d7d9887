package datastructures

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

type ClassProbability struct {
	Class       string  `json:"class" validate:"required"`
	Probability float64 `json:"probability" validate:"gte=0,lte=1"`
}

// ClassProbabilities maps a class label to the model's estimated likelihood.
// It is encoded as a JSON object and keeps the key order it was decoded with.
type ClassProbabilities []ClassProbability

func (c ClassProbabilities) Get(class string) (float64, bool) {
	for _, p := range c {
		if p.Class == class {
			return p.Probability, true
		}
	}
	return 0, false
}

func (c *ClassProbabilities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("class probabilities: expected a JSON object, got %v", tok)
	}

	out := ClassProbabilities{}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		class, ok := tok.(string)
		if !ok {
			return errors.Errorf("class probabilities: unexpected key %v", tok)
		}

		var probability float64
		if err := dec.Decode(&probability); err != nil {
			return errors.Wrapf(err, "class probabilities: value of %q", class)
		}
		out = append(out, ClassProbability{Class: class, Probability: probability})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = out
	return nil
}

func (c ClassProbabilities) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Class)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.Probability)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
