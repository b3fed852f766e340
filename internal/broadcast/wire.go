package broadcast

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pscheid92/linkorbit/internal/domain"
)

type CandidateMessage struct {
	ID    domain.CandidateID `json:"id"`
	Title string             `json:"title"`
	URL   string             `json:"url"`
}

type FeaturedMessage struct {
	Candidate        CandidateMessage       `json:"candidate"`
	Reason           domain.SelectionReason `json:"reason"`
	StartedAt        time.Time              `json:"started_at"`
	DurationSec      int                    `json:"duration_sec"`
	TimeRemainingSec int                    `json:"time_remaining_sec"`
}

// SatelliteMessage hides the candidate until it is revealed.
type SatelliteMessage struct {
	Candidate   *CandidateMessage `json:"candidate"`
	Position    string            `json:"position"`
	Label       string            `json:"label"`
	RevealAt    time.Time         `json:"reveal_at"`
	Revealed    bool              `json:"revealed"`
	Nominations int               `json:"nominations"`
}

type ActionMessage struct {
	Kind        domain.ActionKind      `json:"kind"`
	CandidateID domain.CandidateID     `json:"candidate_id"`
	Title       string                 `json:"title,omitempty"`
	Value       int                    `json:"value,omitempty"`
	Actor       string                 `json:"actor,omitempty"`
	Reason      domain.SelectionReason `json:"reason,omitempty"`
	AgoSec      int                    `json:"ago_sec"`
}

// StateMessage is the full snapshot sent as a heartbeat and served by the
// state endpoint.
type StateMessage struct {
	Type          string             `json:"type"`
	RotationID    uint64             `json:"rotation_id"`
	Featured      *FeaturedMessage   `json:"featured"`
	Satellites    []SatelliteMessage `json:"satellites"`
	RecentActions []ActionMessage    `json:"recent_actions"`
	ViewerCount   int                `json:"viewer_count"`
	SkipPending   bool               `json:"skip_pending"`
	ServerTime    time.Time          `json:"server_time"`
}

type reactMessage struct {
	Type             string             `json:"type"`
	CandidateID      domain.CandidateID `json:"candidate_id"`
	Value            int                `json:"value"`
	Actor            string             `json:"actor"`
	TimeRemainingSec int                `json:"time_remaining_sec"`
}

type nominateMessage struct {
	Type        string             `json:"type"`
	CandidateID domain.CandidateID `json:"candidate_id"`
	Actor       string             `json:"actor"`
	Nominations int                `json:"nominations"`
}

type rotationMessage struct {
	Type        string                 `json:"type"`
	RotationID  uint64                 `json:"rotation_id"`
	Candidate   CandidateMessage       `json:"candidate"`
	Reason      domain.SelectionReason `json:"reason"`
	DurationSec int                    `json:"duration_sec"`
}

const maxActorLength = 12

// shortActor keeps the first maxActorLength runes of actor.
func shortActor(actor string) string {
	if utf8.RuneCountInString(actor) <= maxActorLength {
		return actor
	}
	return string([]rune(actor)[:maxActorLength])
}

// Seconds rounds d to whole seconds.
func Seconds(d time.Duration) int {
	return int(d.Round(time.Second) / time.Second)
}

func candidateMessage(c domain.Candidate) CandidateMessage {
	return CandidateMessage{ID: c.ID, Title: c.Title, URL: c.URL}
}

func NewStateMessage(snap domain.Snapshot) StateMessage {
	msg := StateMessage{
		Type:          domain.StateEvent{}.EventType(),
		RotationID:    snap.RotationID,
		Satellites:    make([]SatelliteMessage, len(snap.Satellites)),
		RecentActions: make([]ActionMessage, len(snap.RecentActions)),
		ViewerCount:   snap.ViewerCount,
		SkipPending:   snap.SkipPending,
		ServerTime:    snap.TakenAt,
	}

	if f := snap.Featured; f != nil {
		msg.Featured = &FeaturedMessage{
			Candidate:        candidateMessage(f.Candidate),
			Reason:           f.Reason,
			StartedAt:        f.StartedAt,
			DurationSec:      Seconds(f.Duration),
			TimeRemainingSec: Seconds(f.Remaining),
		}
	}

	hidden := make(map[domain.CandidateID]bool)
	for i, s := range snap.Satellites {
		if !s.Revealed {
			hidden[s.Candidate.ID] = true
		}
		sm := SatelliteMessage{
			Position:    s.Position,
			Label:       s.Label,
			RevealAt:    s.RevealAt,
			Revealed:    s.Revealed,
			Nominations: s.Nominations,
		}
		if s.Revealed {
			c := candidateMessage(s.Candidate)
			sm.Candidate = &c
		}
		msg.Satellites[i] = sm
	}

	for i, a := range snap.RecentActions {
		title := a.Title
		if hidden[a.CandidateID] {
			title = ""
		}
		msg.RecentActions[i] = ActionMessage{
			Kind:        a.Kind,
			CandidateID: a.CandidateID,
			Title:       title,
			Value:       a.Value,
			Actor:       shortActor(a.Actor),
			Reason:      a.Reason,
			AgoSec:      max(0, Seconds(snap.TakenAt.Sub(a.At))),
		}
	}

	return msg
}

// Encode renders evt as the JSON payload viewers receive.
func Encode(evt domain.Event) ([]byte, error) {
	var payload any
	switch e := evt.(type) {
	case domain.StateEvent:
		payload = NewStateMessage(e.Snapshot)
	case domain.ReactEvent:
		payload = reactMessage{
			Type:             e.EventType(),
			CandidateID:      e.CandidateID,
			Value:            e.Value,
			Actor:            shortActor(e.Actor),
			TimeRemainingSec: Seconds(e.Remaining),
		}
	case domain.NominateEvent:
		payload = nominateMessage{
			Type:        e.EventType(),
			CandidateID: e.CandidateID,
			Actor:       shortActor(e.Actor),
			Nominations: e.Nominations,
		}
	case domain.RotationEvent:
		payload = rotationMessage{
			Type:        e.EventType(),
			RotationID:  e.RotationID,
			Candidate:   candidateMessage(e.Candidate),
			Reason:      e.Reason,
			DurationSec: Seconds(e.Duration),
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", evt.EventType())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", evt.EventType(), err)
	}
	return data, nil
}
