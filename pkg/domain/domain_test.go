package domain_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome_Text(t *testing.T) {
	data, err := json.Marshal(map[string]domain.Outcome{"a": domain.Confirmed, "b": domain.UpdateRequested})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"confirmed","b":"update_requested"}`, string(data))

	var o domain.Outcome
	require.NoError(t, o.UnmarshalText([]byte("update_requested")))
	assert.Equal(t, domain.UpdateRequested, o)

	assert.Error(t, o.UnmarshalText([]byte("maybe")))

	_, err = domain.Outcome(7).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "outcome(7)", domain.Outcome(7).String())
}

func TestDecision_JSON(t *testing.T) {
	d := domain.Decision[string]{Action: "go", Outcome: domain.UpdateRequested, Layers: 3, DisagreementLayer: 2, Disagreements: 1}
	assert.False(t, d.Confirmed())

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"go","outcome":"update_requested","layers":3,"disagreement_layer":2,"disagreements":1}`, string(data))

	ok := domain.Decision[int]{Action: 1, Layers: 1}
	assert.True(t, ok.Confirmed())
}

func TestSnapshot_Record(t *testing.T) {
	s := domain.NewSnapshot("s1", 42, 2)
	assert.Nil(t, s.LastOutcome)
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)

	s.Record(domain.UpdateRequested, 2)
	require.NotNil(t, s.LastOutcome)
	assert.Equal(t, domain.UpdateRequested, *s.LastOutcome)
	assert.Equal(t, 2, s.LastDisagreementLayer)
	assert.False(t, s.UpdatedAt.Before(s.CreatedAt))
}

func TestMergeHooks(t *testing.T) {
	var calls []string
	first := domain.LifecycleHooks{
		OnProbe:    func(context.Context, *domain.ProbeEvent) { calls = append(calls, "probe-1") },
		OnDecision: func(context.Context, *domain.DecisionEvent) { calls = append(calls, "decision-1") },
	}
	second := domain.LifecycleHooks{
		OnDecision: func(context.Context, *domain.DecisionEvent) { calls = append(calls, "decision-2") },
	}

	merged := domain.MergeHooks(first, domain.LifecycleHooks{}, second)
	merged.OnProbe(context.Background(), &domain.ProbeEvent{})
	merged.OnDecision(context.Background(), &domain.DecisionEvent{})

	assert.Equal(t, []string{"probe-1", "decision-1", "decision-2"}, calls)

	empty := domain.MergeHooks()
	assert.Nil(t, empty.OnProbe)
	assert.Nil(t, empty.OnDecision)
}
