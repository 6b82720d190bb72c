package mechanics

import (
	"math"
	"sort"
	"time"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
)

// DecayLambda is the exponential decay rate applied to observation age,
// per minute.
const DecayLambda = 0.015

// maxReinforcementBonus caps how much repeat observations can boost weight.
const maxReinforcementBonus = 3

// ObservationWeight computes an observation's retrieval priority at the given
// time: importance scaled by exponential age decay and a bounded
// reinforcement bonus.
func ObservationWeight(obs domain.Observation, now time.Time) float64 {
	ageMinutes := now.Sub(obs.CreatedAt).Minutes()
	if ageMinutes < 0 {
		ageMinutes = 0
	}
	reinforcement := obs.Reinforcement
	if reinforcement > maxReinforcementBonus {
		reinforcement = maxReinforcementBonus
	}
	return float64(obs.Importance) *
		math.Exp(-DecayLambda*ageMinutes) *
		(1 + 0.15*float64(reinforcement))
}

// WeighObservations scores observations and returns them ordered by
// descending weight. Ties preserve input order so repeated calls are stable.
func WeighObservations(observations []domain.Observation, now time.Time) []domain.WeightedObservation {
	weighted := make([]domain.WeightedObservation, 0, len(observations))
	for _, obs := range observations {
		weighted = append(weighted, domain.WeightedObservation{
			Observation: obs,
			Weight:      ObservationWeight(obs, now),
		})
	}
	sort.SliceStable(weighted, func(i, j int) bool {
		return weighted[i].Weight > weighted[j].Weight
	})
	return weighted
}
