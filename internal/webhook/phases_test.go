package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferPhaseFromEventName(t *testing.T) {
	phase, ok := InferPhase("task.completed", "")
	require.True(t, ok)
	require.Equal(t, PhaseCompleted, phase)

	phase, ok = InferPhase("taskStarted", "whatever label")
	require.True(t, ok)
	require.Equal(t, PhaseStarted, phase)
}

func TestInferPhaseFromLabel(t *testing.T) {
	cases := []struct {
		label string
		want  Phase
	}{
		{"Finalizada", PhaseCompleted},
		{"Concluído", PhaseCompleted},
		{"Em Andamento", PhaseStarted},
		{"Cancelada pelo cliente", PhaseCanceled},
		{"Laudo enviado", PhaseReported},
	}
	for _, tc := range cases {
		phase, ok := InferPhase("task.updated", tc.label)
		require.True(t, ok, tc.label)
		require.Equal(t, tc.want, phase, tc.label)
	}
}

func TestInferPhaseUnknownLabel(t *testing.T) {
	_, ok := InferPhase("task.updated", "Aguardando peças")
	require.False(t, ok)

	_, ok = InferPhase("task.updated", "")
	require.False(t, ok)
}

func TestMatchesPhase(t *testing.T) {
	require.True(t, MatchesPhase("Aguardando Faturamento", PhaseCompleted))
	require.True(t, MatchesPhase("Finalizada", PhaseCompleted))
	require.True(t, MatchesPhase("Em Andamento", PhaseStarted))
	require.False(t, MatchesPhase("Aberta", PhaseCompleted))
	require.False(t, MatchesPhase("", PhaseStarted))
}
