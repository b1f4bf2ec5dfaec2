package server

import (
	"sort"
	"time"
)

type autoFilledDrawing struct {
	ParticipantID string
	FromDraft     bool
	Submission    *Submission
}

func newRound(number int, prompt string, timeLimit int, players []*Participant) *Round {
	expected := make(map[string]struct{}, len(players))
	for _, p := range players {
		expected[p.ID] = struct{}{}
	}
	return &Round{
		Number:      number,
		Prompt:      prompt,
		TimeLimit:   timeLimit,
		expected:    expected,
		submissions: make(map[string]*Submission),
		drafts:      make(map[string]string),
	}
}

func (r *Round) expects(identity string) bool {
	_, ok := r.expected[identity]
	return ok
}

func (r *Round) hasSubmitted(identity string) bool {
	_, ok := r.submissions[identity]
	return ok
}

// allSubmitted is the review gate. An empty gating set never opens it.
func (r *Round) allSubmitted() bool {
	if len(r.expected) == 0 {
		return false
	}
	for id := range r.expected {
		if _, ok := r.submissions[id]; !ok {
			return false
		}
	}
	return true
}

// forget drops a departed participant from the gate and from any records.
func (r *Round) forget(identity string) {
	delete(r.expected, identity)
	delete(r.submissions, identity)
	delete(r.drafts, identity)
}

func (r *Round) submittedIDs() []string {
	ids := make([]string, 0, len(r.submissions))
	for id := range r.submissions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Round) pendingIDs() []string {
	ids := make([]string, 0, len(r.expected))
	for id := range r.expected {
		if _, ok := r.submissions[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// autoFillMissingDrawings records a submission for every pending participant, from their latest draft
// or the blank placeholder.
func autoFillMissingDrawings(room *Room, at time.Time) []autoFilledDrawing {
	round := room.Round
	if round == nil {
		return nil
	}
	filled := make([]autoFilledDrawing, 0)
	for _, p := range room.players() {
		if !round.expects(p.ID) || round.hasSubmitted(p.ID) {
			continue
		}
		data, fromDraft := round.drafts[p.ID], true
		if data == "" {
			data, fromDraft = blankDrawingData(), false
		}
		sub := &Submission{
			ParticipantID: p.ID,
			Username:      p.Name,
			DrawingData:   data,
			SubmittedAt:   at,
			AutoSubmitted: true,
		}
		round.submissions[p.ID] = sub
		filled = append(filled, autoFilledDrawing{ParticipantID: p.ID, FromDraft: fromDraft, Submission: sub})
	}
	return filled
}
