package mechanics

import (
	"math"
	"testing"
	"time"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
)

func TestObservationWeightDecaysWithAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	obs := domain.Observation{Importance: 4, CreatedAt: now.Add(-10 * time.Minute)}

	got := ObservationWeight(obs, now)
	want := 4 * math.Exp(-DecayLambda*10)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("weight = %v, want %v", got, want)
	}

	fresh := domain.Observation{Importance: 4, CreatedAt: now}
	if ObservationWeight(fresh, now) <= got {
		t.Fatal("expected fresher observation to outweigh older one")
	}
}

func TestObservationWeightCapsReinforcement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	capped := domain.Observation{Importance: 2, Reinforcement: 3, CreatedAt: now}
	overCapped := domain.Observation{Importance: 2, Reinforcement: 50, CreatedAt: now}

	if ObservationWeight(capped, now) != ObservationWeight(overCapped, now) {
		t.Fatal("expected reinforcement bonus to cap at 3")
	}
	want := 2 * (1 + 0.15*3)
	if got := ObservationWeight(capped, now); math.Abs(got-want) > 1e-9 {
		t.Fatalf("weight = %v, want %v", got, want)
	}
}

func TestObservationWeightFutureCreationIsNotBoosted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := domain.Observation{Importance: 3, CreatedAt: now.Add(5 * time.Minute)}
	if got := ObservationWeight(future, now); got != 3 {
		t.Fatalf("expected clock-skewed observation weighted as fresh, got %v", got)
	}
}

func TestWeighObservationsOrdersByWeight(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	observations := []domain.Observation{
		{ID: "old", Importance: 5, CreatedAt: now.Add(-8 * time.Hour)},
		{ID: "fresh", Importance: 3, CreatedAt: now.Add(-1 * time.Minute)},
		{ID: "faint", Importance: 1, CreatedAt: now.Add(-8 * time.Hour)},
	}

	weighted := WeighObservations(observations, now)
	if len(weighted) != 3 {
		t.Fatalf("expected 3 weighted observations, got %d", len(weighted))
	}
	if weighted[0].Observation.ID != "fresh" {
		t.Fatalf("expected fresh observation first, got %q", weighted[0].Observation.ID)
	}
	if weighted[2].Observation.ID != "faint" {
		t.Fatalf("expected faint observation last, got %q", weighted[2].Observation.ID)
	}
	for i := 1; i < len(weighted); i++ {
		if weighted[i].Weight > weighted[i-1].Weight {
			t.Fatal("expected descending weights")
		}
	}
}
