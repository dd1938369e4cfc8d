package layers_test

import (
	"testing"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goal is the model of the "reach the goal by increments" problem.
type goal struct {
	Target   int
	Position int
}

func step(m goal) int {
	switch {
	case m.Position < m.Target:
		return 1
	case m.Position > m.Target:
		return -1
	default:
		return 0
	}
}

// lowerTarget doubts the goal: maybe it is one less than believed.
func lowerTarget(m goal) goal {
	if m.Target > 0 {
		m.Target--
	}
	return m
}

func newCounted[M any, A comparable](t *testing.T, decide layers.DecideFunc[M, A], mutate layers.MutateFunc[M]) (*layers.Zero[M, A], *int) {
	t.Helper()
	calls := 0
	zero, err := layers.NewZero(func(m M) A {
		calls++
		return decide(m)
	}, mutate)
	require.NoError(t, err)
	return zero, &calls
}

func build[M any, A comparable](t *testing.T, zero *layers.Zero[M, A], n int) layers.Decider[M, A] {
	t.Helper()
	d, err := layers.Build(zero, n)
	require.NoError(t, err)
	return d
}

func TestNewZero_RequiresDecide(t *testing.T) {
	_, err := layers.NewZero[string, string](nil, nil)
	assert.ErrorIs(t, err, domain.ErrNilDecide)
}

func TestZero_Decide(t *testing.T) {
	zero, calls := newCounted(t, step, lowerTarget)

	d := zero.Decide(goal{Target: 4, Position: 0})

	assert.Equal(t, 1, d.Action)
	assert.Equal(t, domain.Confirmed, d.Outcome)
	assert.Equal(t, 0, d.Layers)
	assert.Zero(t, d.DisagreementLayer)
	assert.Equal(t, 1, *calls)
}

func TestLayered_GoStopScenario(t *testing.T) {
	table := map[string]string{"A": "go", "B": "go", "C": "stop"}
	decide := func(m string) string { return table[m] }

	tests := []struct {
		name     string
		mutation map[string]string
		outcome  domain.Outcome
	}{
		{"mutation to B agrees", map[string]string{"A": "B"}, domain.Confirmed},
		{"mutation to C disagrees", map[string]string{"A": "C"}, domain.UpdateRequested},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zero, err := layers.NewZero(decide, func(m string) string { return tt.mutation[m] })
			require.NoError(t, err)

			layered, err := layers.Wrap[string, string](zero)
			require.NoError(t, err)
			d := layered.Decide("A")

			assert.Equal(t, "go", d.Action, "pre-mutation action is always returned")
			assert.Equal(t, tt.outcome, d.Outcome)
			assert.Equal(t, 1, d.Layers)
		})
	}
}

func TestLayered_ReachGoal(t *testing.T) {
	zero, err := layers.NewZero(step, lowerTarget)
	require.NoError(t, err)

	t.Run("One Layer", func(t *testing.T) {
		s := build(t, zero, 1)
		for pos := 1; pos <= 2; pos++ {
			d := s.Decide(goal{Target: 4, Position: pos})
			assert.Equal(t, 1, d.Action)
			assert.True(t, d.Confirmed(), "position %d", pos)
		}

		// Undecided whether the goal is 4 or 3.
		d := s.Decide(goal{Target: 4, Position: 3})
		assert.Equal(t, 1, d.Action)
		assert.Equal(t, domain.UpdateRequested, d.Outcome)
		assert.Equal(t, 1, d.DisagreementLayer)
	})

	t.Run("Two Layers", func(t *testing.T) {
		s := build(t, zero, 2)
		assert.True(t, s.Decide(goal{Target: 4, Position: 1}).Confirmed())

		// Undecided whether the goal is 4, 3 or 2.
		d := s.Decide(goal{Target: 4, Position: 2})
		assert.Equal(t, 1, d.Action)
		assert.Equal(t, domain.UpdateRequested, d.Outcome)
		assert.Equal(t, 2, d.DisagreementLayer)
	})

	t.Run("Decrease Back To Zero", func(t *testing.T) {
		s := layers.Dec(layers.Dec(build(t, zero, 2)))
		assert.Equal(t, 0, layers.Depth(s))

		d := s.Decide(goal{Target: 4, Position: 3})
		assert.Equal(t, 1, d.Action)
		assert.True(t, d.Confirmed())

		d = s.Decide(goal{Target: 4, Position: 4})
		assert.Equal(t, 0, d.Action)
	})
}

func TestLayered_LinearCost(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 10, 32} {
		zero, calls := newCounted(t, step, lowerTarget)
		s := build(t, zero, n)

		s.Decide(goal{Target: 100, Position: 0})

		assert.Equal(t, n+1, *calls, "depth %d", n)
	}
}

func TestLayered_NoOpMutationConfirms(t *testing.T) {
	identity := func(m goal) goal { return m }

	// Base logic that changes its mind on every call.
	flip := 0
	erratic := func(goal) int {
		flip++
		return flip % 2
	}

	for _, mutate := range []layers.MutateFunc[goal]{identity, nil} {
		zero, err := layers.NewZero(erratic, mutate)
		require.NoError(t, err)

		d := build(t, zero, 4).Decide(goal{Target: 3})
		assert.Equal(t, domain.Confirmed, d.Outcome)
		assert.Zero(t, d.Disagreements)
	}
}

func TestLayered_NoOpDetectionDisabled(t *testing.T) {
	flip := 0
	erratic := func(goal) int {
		flip++
		return flip % 2
	}
	zero, err := layers.NewZero(erratic, func(m goal) goal { return m }, layers.WithModelEqual[goal](nil))
	require.NoError(t, err)

	d := build(t, zero, 1).Decide(goal{})
	assert.Equal(t, domain.UpdateRequested, d.Outcome)
}

func TestLayered_ShallowestDisagreement(t *testing.T) {
	// Decisions along the chain 0,1,2,3,4: a a b b c
	actions := []string{"a", "a", "b", "b", "c"}
	zero, err := layers.NewZero(
		func(i int) string { return actions[i] },
		func(i int) int { return i + 1 },
	)
	require.NoError(t, err)

	var probes []domain.Probe[string]
	d := layers.Evaluate(build(t, zero, 4), 0, func(p domain.Probe[string]) {
		probes = append(probes, p)
	})

	assert.Equal(t, "a", d.Action)
	assert.Equal(t, domain.UpdateRequested, d.Outcome)
	assert.Equal(t, 2, d.DisagreementLayer)
	assert.Equal(t, 2, d.Disagreements)
	require.Len(t, probes, 4)
	for i, p := range probes {
		assert.Equal(t, i+1, p.Layer)
		assert.Equal(t, actions[i], p.Before)
		assert.Equal(t, actions[i+1], p.After)
	}
	assert.False(t, probes[1].Agreed)
	assert.True(t, probes[2].Agreed)
}

func TestLayered_ConfirmedActionIsStableUnderMoreLayers(t *testing.T) {
	zero, err := layers.NewZero(step, lowerTarget)
	require.NoError(t, err)

	m := goal{Target: 10, Position: 2}
	var prev layers.Decider[goal, int] = zero
	for n := 1; n <= 12; n++ {
		next := layers.Inc(prev)
		before, after := prev.Decide(m), next.Decide(m)
		if before.Confirmed() {
			assert.Equal(t, before.Action, after.Action, "depth %d", n)
		}
		prev = next
	}
}

func TestStack_PeanoShape(t *testing.T) {
	zero, err := layers.NewZero(step, lowerTarget)
	require.NoError(t, err)

	s := build(t, zero, 3)
	assert.Equal(t, 3, layers.Depth(s))
	assert.Same(t, zero, layers.CoreZero(s))

	l, ok := s.(*layers.Layered[goal, int])
	require.True(t, ok)
	assert.Equal(t, 2, layers.Depth(l.Core()))

	assert.Equal(t, 4, layers.Depth(layers.Inc(s)))
	assert.Same(t, zero, layers.Dec[goal, int](zero))

	_, err = layers.Build(zero, -1)
	assert.ErrorIs(t, err, domain.ErrNegativeDepth)

	wrapped, err := layers.Wrap(s)
	require.NoError(t, err)
	assert.Equal(t, 4, layers.Depth[goal, int](wrapped))
	assert.Same(t, zero, layers.CoreZero[goal, int](wrapped))
}

func TestStack_RejectsMissingCore(t *testing.T) {
	tests := []struct {
		name string
		core layers.Decider[goal, int]
		want error
	}{
		{"nil interface", nil, domain.ErrNilCore},
		{"nil zero", (*layers.Zero[goal, int])(nil), domain.ErrNilCore},
		{"nil layered", (*layers.Layered[goal, int])(nil), domain.ErrNilCore},
		{"empty layered", &layers.Layered[goal, int]{}, domain.ErrNilCore},
		{"zero without logic", &layers.Zero[goal, int]{}, domain.ErrNilDecide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := layers.Wrap(tt.core)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, layers.Validate(tt.core), tt.want)
		})
	}

	_, err := layers.Build[goal, int](nil, 2)
	assert.ErrorIs(t, err, domain.ErrNilCore)
}

type counter int

func (c counter) Mutate() counter { return c + 1 }

func TestSelfMutate(t *testing.T) {
	zero, err := layers.NewZero(func(c counter) bool { return c < 2 }, layers.SelfMutate[counter]())
	require.NoError(t, err)

	assert.True(t, build(t, zero, 1).Decide(0).Confirmed())
	d := build(t, zero, 2).Decide(0)
	assert.True(t, d.Action)
	assert.Equal(t, 2, d.DisagreementLayer)
}

func TestDefaultEqual(t *testing.T) {
	type private struct {
		name  string
		attrs map[string]int
	}
	a := private{name: "x", attrs: map[string]int{"k": 1}}
	b := private{name: "x", attrs: map[string]int{"k": 1}}
	c := private{name: "x", attrs: map[string]int{"k": 2}}

	assert.True(t, layers.DefaultEqual(a, b))
	assert.False(t, layers.DefaultEqual(a, c))
}

// brittle has an Equal method that cmp prefers over structural comparison.
type brittle struct {
	N int
}

func (brittle) Equal(brittle) bool { panic("cannot compare") }

func TestDefaultEqual_Uncomparable(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.False(t, layers.DefaultEqual(brittle{1}, brittle{1}))
	})
	assert.True(t, layers.DefaultEqual(goal{Target: 3}, goal{Target: 3}))

	zero, err := layers.NewZero(
		func(b brittle) bool { return b.N < 2 },
		func(b brittle) brittle { return brittle{b.N + 1} },
	)
	require.NoError(t, err)

	d := build(t, zero, 2).Decide(brittle{0})
	assert.True(t, d.Action)
	assert.Equal(t, 2, d.DisagreementLayer)
}
