package service

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"examhub_backend/internal/model"
)

// PresentQuestions derives the display ordering for one attempt. With
// randomization off it is the authored order; with it on, questions and
// choice options are shuffled with a PRNG seeded by the attempt id, so
// repeated fetches of the same attempt show a stable order. Purely cosmetic:
// grading operates on ids, never positions.
func PresentQuestions(attemptID string, snap *model.DefinitionSnapshot) []model.SnapshotQuestion {
	questions := make([]model.SnapshotQuestion, len(snap.Questions))
	copy(questions, snap.Questions)

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].Order < questions[j].Order
	})
	for i := range questions {
		questions[i].Options = sortedOptions(questions[i].Options)
	}

	if !snap.Randomize {
		return questions
	}

	rng := rand.New(rand.NewSource(attemptSeed(attemptID)))
	rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	for i := range questions {
		if len(questions[i].Options) > 1 {
			rng.Shuffle(len(questions[i].Options), func(a, b int) {
				questions[i].Options[a], questions[i].Options[b] = questions[i].Options[b], questions[i].Options[a]
			})
		}
	}
	return questions
}

func sortedOptions(options []model.SnapshotOption) []model.SnapshotOption {
	out := make([]model.SnapshotOption, len(options))
	copy(out, options)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

func attemptSeed(attemptID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(attemptID))
	return int64(h.Sum64())
}
