package broadcast

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pscheid92/linkorbit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_State(t *testing.T) {
	snap := domain.Snapshot{
		RotationID: 4,
		Featured: &domain.FeaturedSlot{
			Candidate: domain.Candidate{ID: 7, Title: "Seven", URL: "https://example.com/7", Score: 12},
			StartedAt: epoch,
			Duration:  120 * time.Second,
			Remaining: 95*time.Second + 400*time.Millisecond,
			Reason:    domain.ReasonRerun,
		},
		Satellites: []domain.Satellite{
			{
				Candidate:   domain.Candidate{ID: 8, Title: "Eight", URL: "https://example.com/8"},
				Position:    "top",
				Label:       "deep-dive",
				RevealAt:    epoch.Add(20 * time.Second),
				Revealed:    true,
				Nominations: 2,
			},
			{
				Candidate: domain.Candidate{ID: 9, Title: "Nine", URL: "https://example.com/9"},
				Position:  "top-left",
				Label:     "deep-dive",
				RevealAt:  epoch.Add(40 * time.Second),
			},
		},
		RecentActions: []domain.RecentAction{
			{Kind: domain.ActionReact, CandidateID: 7, Title: "Seven", Value: -1, Actor: "abc", At: epoch.Add(25 * time.Second)},
			{Kind: domain.ActionRotation, CandidateID: 7, Title: "Seven", Reason: domain.ReasonRerun, At: epoch},
		},
		ViewerCount: 3,
		TakenAt:     epoch.Add(30 * time.Second),
	}

	data, err := Encode(domain.StateEvent{Snapshot: snap})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "state",
		"rotation_id": 4,
		"featured": {
			"candidate": {"id": 7, "title": "Seven", "url": "https://example.com/7"},
			"reason": "rerun",
			"started_at": "2026-01-01T12:00:00Z",
			"duration_sec": 120,
			"time_remaining_sec": 95
		},
		"satellites": [
			{
				"candidate": {"id": 8, "title": "Eight", "url": "https://example.com/8"},
				"position": "top", "label": "deep-dive",
				"reveal_at": "2026-01-01T12:00:20Z", "revealed": true, "nominations": 2
			},
			{
				"candidate": null,
				"position": "top-left", "label": "deep-dive",
				"reveal_at": "2026-01-01T12:00:40Z", "revealed": false, "nominations": 0
			}
		],
		"recent_actions": [
			{"kind": "react", "candidate_id": 7, "title": "Seven", "value": -1, "actor": "abc", "ago_sec": 5},
			{"kind": "rotation", "candidate_id": 7, "title": "Seven", "reason": "rerun", "ago_sec": 30}
		],
		"viewer_count": 3,
		"skip_pending": false,
		"server_time": "2026-01-01T12:00:30Z"
	}`, string(data))
}

func TestEncode_EmptyState(t *testing.T) {
	data, err := Encode(domain.StateEvent{Snapshot: domain.Snapshot{TakenAt: epoch}})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "state", "rotation_id": 0, "featured": null,
		"satellites": [], "recent_actions": [],
		"viewer_count": 0, "skip_pending": false,
		"server_time": "2026-01-01T12:00:00Z"
	}`, string(data))
}

func TestEncode_Incremental(t *testing.T) {
	tests := []struct {
		name string
		evt  domain.Event
		want string
	}{
		{
			"react",
			domain.ReactEvent{CandidateID: 7, Value: 1, Actor: "0123456789abcdef", Remaining: 135 * time.Second},
			`{"type":"react","candidate_id":7,"value":1,"actor":"0123456789ab","time_remaining_sec":135}`,
		},
		{
			"nominate",
			domain.NominateEvent{CandidateID: 8, Actor: "bob", Nominations: 3},
			`{"type":"nominate","candidate_id":8,"actor":"bob","nominations":3}`,
		},
		{
			"rotation",
			domain.RotationEvent{RotationID: 5, Candidate: domain.Candidate{ID: 8, Title: "Eight", URL: "u"}, Reason: domain.ReasonNominated, Duration: 2 * time.Minute},
			`{"type":"rotation","rotation_id":5,"candidate":{"id":8,"title":"Eight","url":"u"},"reason":"nominated","duration_sec":120}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.evt)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

type unknownEvent struct{}

func (unknownEvent) EventType() string { return "unknown" }

func TestEncode_UnknownEvent(t *testing.T) {
	_, err := Encode(unknownEvent{})
	assert.ErrorContains(t, err, `unknown event type "unknown"`)
}

func TestShortActor(t *testing.T) {
	tests := []struct {
		actor string
		want  string
	}{
		{"", ""},
		{"bob", "bob"},
		{"0123456789ab", "0123456789ab"},
		{"0123456789abcdef", "0123456789ab"},
		{"ääääääääääääää", "ääääääääääää"},
	}
	for _, tt := range tests {
		t.Run(tt.actor, func(t *testing.T) {
			got := shortActor(tt.actor)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestEncode_StateShortensRecentActors(t *testing.T) {
	snap := domain.Snapshot{
		RecentActions: []domain.RecentAction{{Kind: domain.ActionNominate, CandidateID: 8, Actor: "a-very-long-actor-name", At: epoch}},
		TakenAt:       epoch,
	}

	msg := NewStateMessage(snap)

	require.Len(t, msg.RecentActions, 1)
	assert.Equal(t, "a-very-long-", msg.RecentActions[0].Actor)
}

func TestEncode_StateHidesUnrevealedTitles(t *testing.T) {
	snap := domain.Snapshot{
		Satellites: []domain.Satellite{
			{Candidate: domain.Candidate{ID: 8, Title: "Eight"}, Revealed: true},
			{Candidate: domain.Candidate{ID: 9, Title: "Nine"}},
		},
		RecentActions: []domain.RecentAction{
			{Kind: domain.ActionNominate, CandidateID: 9, Title: "Nine", Actor: "u1", At: epoch},
			{Kind: domain.ActionNominate, CandidateID: 8, Title: "Eight", Actor: "u2", At: epoch},
		},
		TakenAt: epoch,
	}

	msg := NewStateMessage(snap)

	require.Len(t, msg.RecentActions, 2)
	assert.Empty(t, msg.RecentActions[0].Title)
	assert.Equal(t, domain.CandidateID(9), msg.RecentActions[0].CandidateID)
	assert.Equal(t, "Eight", msg.RecentActions[1].Title)
	assert.Nil(t, msg.Satellites[1].Candidate)
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 0, Seconds(0))
	assert.Equal(t, 1, Seconds(500*time.Millisecond))
	assert.Equal(t, 95, Seconds(95*time.Second+499*time.Millisecond))
	assert.Equal(t, 120, Seconds(2*time.Minute))
}
