package server

import (
	"math/rand/v2"

	"sketch-judge/internal/db"

	"github.com/rs/zerolog/log"
)

const (
	defaultSuggestionCount = 3
	maxSuggestionCount     = 10
)

// promptSuggestions returns up to count prompts for the judge to pick from. The database library is
// used when available, otherwise the built-in list.
func (s *Server) promptSuggestions(category string, count int) []string {
	if count <= 0 {
		count = defaultSuggestionCount
	}
	if count > maxSuggestionCount {
		count = maxSuggestionCount
	}
	if s.db != nil {
		texts, err := db.RandomPrompts(s.db, category, count)
		if err != nil {
			log.Warn().Err(err).Str("category", category).Msg("load prompt suggestions failed")
		} else if len(texts) > 0 {
			return texts
		}
	}
	return selectPrompts(fallbackPromptsList(), count)
}

func fallbackPromptsList() []string {
	return []string{
		"A llama in a suit",
		"A castle made of pancakes",
		"A robot learning to dance",
		"A pirate cat at a tea party",
		"A rocket powered skateboard",
		"A haunted treehouse",
		"A snowy beach day",
		"A giant sunflower city",
		"A dragon doing taxes",
		"A submarine full of bees",
		"A wizard stuck in traffic",
		"A snail winning a race",
	}
}

func selectPrompts(pool []string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	shuffled := append([]string(nil), pool...)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if limit > len(shuffled) {
		limit = len(shuffled)
	}
	return shuffled[:limit]
}
