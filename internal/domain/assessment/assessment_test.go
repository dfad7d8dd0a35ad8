package assessment_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/okian/pcosrisk/internal/domain/assessment"
	. "github.com/smartystreets/goconvey/convey"
)

const fullPayload = `{"age":28,"weight":65,"height":165,"cycle":"Irregular","cycleDuration":45,
"symptoms":["acne"],"exerciseFrequency":"Low","dietType":"Balanced","sleepHours":6}`

func TestDecode(t *testing.T) {
	Convey("Given raw request bodies", t, func() {
		Convey("When the body is a JSON object", func() {
			p, err := assessment.Decode(strings.NewReader(fullPayload))

			Convey("Then numbers are kept verbatim", func() {
				So(err, ShouldBeNil)
				So(p["age"], ShouldEqual, json.Number("28"))
				So(p["cycle"], ShouldEqual, "Irregular")
				So(p["symptoms"], ShouldResemble, []any{"acne"})
			})
		})

		Convey("When the body is not an object", func() {
			for _, body := range []string{`null`, `[1,2]`, `"age"`, `{"age":`, ``, `{} {}`} {
				_, err := assessment.Decode(strings.NewReader(body))
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestTruthy(t *testing.T) {
	Convey("Given values the client may send", t, func() {
		falsy := []any{nil, false, "", json.Number("0"), json.Number("0.0"), float64(0), math.NaN(), 0}
		for _, v := range falsy {
			So(assessment.Truthy(v), ShouldBeFalse)
		}

		truthy := []any{true, "0", "Regular", json.Number("28"), json.Number("-1"), 0.5, 3, []any{}, map[string]any{}}
		for _, v := range truthy {
			So(assessment.Truthy(v), ShouldBeTrue)
		}
	})
}

func TestMissing(t *testing.T) {
	Convey("Given a complete questionnaire", t, func() {
		p, err := assessment.Decode(strings.NewReader(fullPayload))
		So(err, ShouldBeNil)

		Convey("Then nothing is missing", func() {
			So(assessment.MissingBasic(p), ShouldBeEmpty)
			So(assessment.Missing(p), ShouldBeEmpty)
			So(assessment.Complete(p), ShouldBeTrue)
		})

		Convey("When age is zero and height is absent", func() {
			p["age"] = json.Number("0")
			delete(p, "height")

			Convey("Then both are reported in order", func() {
				So(assessment.MissingBasic(p), ShouldResemble, []string{"age", "height"})
				So(assessment.Complete(p), ShouldBeFalse)
			})
		})

		Convey("When cycle is sent under its long name", func() {
			delete(p, "cycle")
			p["cycleRegularity"] = "Regular"

			Convey("Then the payload is still complete", func() {
				So(assessment.Complete(p), ShouldBeTrue)
			})
		})

		Convey("When lifestyle answers are blank", func() {
			delete(p, "cycle")
			p["dietType"] = ""
			delete(p, "sleepHours")

			Convey("Then only the lifestyle and cycle keys are reported", func() {
				So(assessment.MissingBasic(p), ShouldBeEmpty)
				So(assessment.Missing(p), ShouldResemble, []string{"cycle", "dietType", "sleepHours"})
			})
		})
	})
}

func TestApplyDefaults(t *testing.T) {
	Convey("Given a payload without the optional cycle keys", t, func() {
		p := assessment.Payload{"age": json.Number("30")}
		assessment.ApplyDefaults(p)

		Convey("Then the literal defaults are filled in", func() {
			So(p["cycleDuration"], ShouldEqual, json.Number("28"))
			So(p["cycleGap"], ShouldEqual, json.Number("0"))
			So(p["symptoms"], ShouldResemble, []any{})
		})

		Convey("And present values are never rewritten", func() {
			q := assessment.Payload{"cycleDuration": "", "cycleGap": nil, "symptoms": []any{"acne"}}
			assessment.ApplyDefaults(q)
			So(q["cycleDuration"], ShouldEqual, "")
			So(q["cycleGap"], ShouldBeNil)
			So(q["symptoms"], ShouldResemble, []any{"acne"})
		})

		Convey("And a nil payload is ignored", func() {
			So(func() { assessment.ApplyDefaults(nil) }, ShouldNotPanic)
		})
	})
}

func TestFromAssessment(t *testing.T) {
	Convey("Given a typed assessment", t, func() {
		a := assessment.Assessment{
			Age:               28,
			Weight:            65,
			Height:            165,
			Cycle:             assessment.CycleIrregular,
			CycleDuration:     45,
			Symptoms:          []string{"acne"},
			ExerciseFrequency: "Low",
			DietType:          "Balanced",
			SleepHours:        6,
		}

		Convey("Then it converts into a complete payload", func() {
			p, err := assessment.FromAssessment(a)
			So(err, ShouldBeNil)
			So(assessment.Complete(p), ShouldBeTrue)
			So(p["cycleDuration"], ShouldEqual, json.Number("45"))
		})

		Convey("And BMI uses centimetres", func() {
			So(a.BMI(), ShouldAlmostEqual, 23.875, 0.001)
			So(assessment.Assessment{Weight: 60}.BMI(), ShouldEqual, float64(0))
		})
	})
}
