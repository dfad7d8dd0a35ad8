package smoke

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/pcosrisk/internal/domain/assessment"
	"github.com/okian/pcosrisk/pkg/logger"
)

const randomFloatDivisor = 1000000

// Answer vocabularies understood by the reference scorer.
var (
	symptomChoices  = []string{"Weight Gain", "Hair Growth", "Hair Loss", "Acne", "Dark Patches", "Fatigue"}
	exerciseChoices = []string{"None", "Rarely", "Weekly", "Daily"}
	dietChoices     = []string{"Balanced", "Vegetarian", "Fast Food", "Junk Food", "High Protein"}
)

// Measurement ranges for generated questionnaires.
const (
	ageMin, ageMax               = 16, 45
	weightMin, weightMax         = 42.0, 115.0
	heightMin, heightMax         = 145.0, 185.0
	cycleMin, cycleMax           = 21, 60
	cycleGapMax                  = 90
	sleepMin, sleepMax           = 4.0, 10.0
	irregularCycleDurationCutoff = 35
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randomInt returns a uniform integer in [lo, hi].
func randomInt(lo, hi int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	return lo + int(n.Int64())
}

func randomChoice(choices []string) string {
	return choices[randomInt(0, len(choices)-1)]
}

// round1 keeps generated measurements to one decimal like a form field.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// generateAssessment builds one plausible, complete questionnaire.
func generateAssessment() assessment.Assessment {
	a := assessment.Assessment{
		Age:               float64(randomInt(ageMin, ageMax)),
		Weight:            round1(weightMin + getRandomFloat()*(weightMax-weightMin)),
		Height:            round1(heightMin + getRandomFloat()*(heightMax-heightMin)),
		CycleDuration:     float64(randomInt(cycleMin, cycleMax)),
		Symptoms:          []string{},
		ExerciseFrequency: randomChoice(exerciseChoices),
		DietType:          randomChoice(dietChoices),
		SleepHours:        round1(sleepMin + getRandomFloat()*(sleepMax-sleepMin)),
	}

	a.Cycle = assessment.CycleRegular
	if a.CycleDuration > irregularCycleDurationCutoff {
		a.Cycle = assessment.CycleIrregular
		a.CycleGap = float64(randomInt(0, cycleGapMax))
	}

	for _, s := range symptomChoices {
		if getRandomFloat() < 0.3 {
			a.Symptoms = append(a.Symptoms, s)
		}
	}
	return a
}

// breakAssessment removes or blanks one basic measurement so the server
// must reject the payload.
func breakAssessment(p assessment.Payload) {
	keys := []string{assessment.KeyAge, assessment.KeyWeight, assessment.KeyHeight}
	key := keys[randomInt(0, len(keys)-1)]
	if getRandomFloat() < 0.5 {
		delete(p, key)
		return
	}
	p[key] = 0
}

// generateRequests creates config.NumRequests questionnaires, roughly
// InvalidRatio of which are missing a basic measurement.
func generateRequests(ctx context.Context, config *Config, stats *Stats) ([]Request, error) {
	logger.Get().Info(ctx, "generating questionnaires",
		logger.Int("count", config.NumRequests),
		logger.Float64("invalidRatio", config.InvalidRatio),
	)

	requests := make([]Request, 0, config.NumRequests)
	for i := 0; i < config.NumRequests; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}

		p, err := assessment.FromAssessment(generateAssessment())
		if err != nil {
			return nil, fmt.Errorf("failed to build questionnaire %d: %w", i, err)
		}

		valid := getRandomFloat() >= config.InvalidRatio
		if !valid {
			breakAssessment(p)
		}
		requests = append(requests, Request{ID: uuid.NewString(), Payload: p, ExpectValid: valid})
	}

	stats.Generated = len(requests)
	logger.Get().Info(ctx, "generated questionnaires", logger.Int("count", len(requests)))
	return requests, nil
}
