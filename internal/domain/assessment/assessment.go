// Package assessment models the questionnaire payload posted by the front-end.
//
// The service forwards payloads to the scorer as raw JSON objects, so the
// checks here work on the decoded map rather than on a typed struct. The
// typed Assessment only documents the wire shape and is used to build
// payloads programmatically.
package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
)

// JSON keys of the questionnaire.
const (
	KeyAge               = "age"
	KeyWeight            = "weight"
	KeyHeight            = "height"
	KeyCycle             = "cycle"
	KeyCycleRegularity   = "cycleRegularity"
	KeyCycleDuration     = "cycleDuration"
	KeyCycleGap          = "cycleGap"
	KeySymptoms          = "symptoms"
	KeyExerciseFrequency = "exerciseFrequency"
	KeyDietType          = "dietType"
	KeySleepHours        = "sleepHours"
)

// Defaults substituted for optional keys the client left out.
const (
	DefaultCycleDuration = 28
	DefaultCycleGap      = 0
)

// Cycle regularity values.
const (
	CycleRegular   = "Regular"
	CycleIrregular = "Irregular"
)

// basicKeys must be truthy for a request to reach the scorer.
var basicKeys = []string{KeyAge, KeyWeight, KeyHeight}

// lifestyleKeys complete the questionnaire together with basicKeys and cycle.
var lifestyleKeys = []string{KeyExerciseFrequency, KeyDietType, KeySleepHours}

// Assessment is the typed wire shape of a questionnaire.
type Assessment struct {
	Age               float64  `json:"age"`
	Weight            float64  `json:"weight"`
	Height            float64  `json:"height"`
	Cycle             string   `json:"cycle"`
	CycleDuration     float64  `json:"cycleDuration"`
	CycleGap          float64  `json:"cycleGap"`
	Symptoms          []string `json:"symptoms"`
	ExerciseFrequency string   `json:"exerciseFrequency"`
	DietType          string   `json:"dietType"`
	SleepHours        float64  `json:"sleepHours"`
}

// BMI returns weight / height² with height converted from cm to m.
// Zero when height is unknown.
func (a Assessment) BMI() float64 {
	if a.Height <= 0 {
		return 0
	}
	m := a.Height / 100
	return a.Weight / (m * m)
}

// Payload is a questionnaire as received: a JSON object of arbitrary shape.
type Payload map[string]any

// Decode reads exactly one JSON object from r. Numbers are kept as
// json.Number so they are forwarded to the scorer unchanged.
func Decode(r io.Reader) (Payload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("payload must be a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return p, nil
}

// FromAssessment converts the typed view into a Payload.
func FromAssessment(a Assessment) (Payload, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(raw))
}

// MissingBasic returns the age/weight/height keys that are not truthy.
func MissingBasic(p Payload) []string {
	var missing []string
	for _, k := range basicKeys {
		if !Truthy(p[k]) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Missing returns every required key that is absent or not truthy. Cycle
// regularity may be sent as either "cycle" or "cycleRegularity" and is
// reported as "cycle".
func Missing(p Payload) []string {
	missing := MissingBasic(p)
	if !Truthy(p[KeyCycle]) && !Truthy(p[KeyCycleRegularity]) {
		missing = append(missing, KeyCycle)
	}
	for _, k := range lifestyleKeys {
		if !Truthy(p[k]) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Complete reports whether every required key is present.
func Complete(p Payload) bool {
	return len(Missing(p)) == 0
}

// ApplyDefaults fills cycleDuration, cycleGap and symptoms when the keys are
// absent. Keys that are present keep their value, whatever it is.
func ApplyDefaults(p Payload) {
	if p == nil {
		return
	}
	if _, ok := p[KeyCycleDuration]; !ok {
		p[KeyCycleDuration] = json.Number(fmt.Sprint(DefaultCycleDuration))
	}
	if _, ok := p[KeyCycleGap]; !ok {
		p[KeyCycleGap] = json.Number(fmt.Sprint(DefaultCycleGap))
	}
	if _, ok := p[KeySymptoms]; !ok {
		p[KeySymptoms] = []any{}
	}
}

// Truthy mirrors how the questionnaire client tests a field: absent, null,
// false, zero, NaN and the empty string are falsy. Strings are not parsed,
// so "0" is truthy, matching the client.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return strings.TrimSpace(t.String()) != ""
		}
		return f != 0 && !math.IsNaN(f)
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		// Objects and arrays are truthy even when empty.
		return true
	}
}
