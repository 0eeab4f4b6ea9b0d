package webhook

import (
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/matching"
)

// Phase is the canonical lifecycle stage inferred from an event.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseCompleted Phase = "completed"
	PhaseReported  Phase = "reported"
	PhaseCanceled  Phase = "canceled"
)

// phaseOrder fixes the evaluation order so inference is deterministic when a
// label carries terms from more than one phase.
var phaseOrder = []Phase{PhaseCompleted, PhaseCanceled, PhaseStarted, PhaseReported}

// phaseKeywords maps each phase to the status-label terms observed from the
// platform, in both Portuguese and English. Extend the table, not the code.
var phaseKeywords = map[Phase][]string{
	PhaseStarted:   {"iniciada", "iniciado", "started", "em andamento", "in progress", "execucao"},
	PhaseCompleted: {"finalizada", "finalizado", "concluida", "concluido", "done", "completed", "finished"},
	PhaseReported:  {"relatorio", "reported", "laudo", "report"},
	PhaseCanceled:  {"cancelada", "cancelado", "canceled", "cancelled"},
}

// eventNameTerms resolves the phase straight from the event discriminator
// (e.g. "task.completed") before falling back to the status label.
var eventNameTerms = map[Phase][]string{
	PhaseStarted:   {"started", "start"},
	PhaseCompleted: {"completed", "finished", "done"},
	PhaseReported:  {"reported", "report"},
	PhaseCanceled:  {"canceled", "cancelled", "cancel"},
}

// InferPhase resolves the canonical phase from the event name first, then by
// keyword-matching the free-text status label. Ambiguity yields no phase:
// unknown transitions must never mutate state.
func InferPhase(eventName, label string) (Phase, bool) {
	name := matching.Normalize(eventName)
	for _, phase := range phaseOrder {
		for _, term := range eventNameTerms[phase] {
			if strings.Contains(name, term) {
				return phase, true
			}
		}
	}

	normalized := matching.Normalize(label)
	if normalized == "" {
		return "", false
	}
	for _, phase := range phaseOrder {
		for _, term := range phaseKeywords[phase] {
			if strings.Contains(normalized, term) {
				return phase, true
			}
		}
	}
	return "", false
}

// statusNameTerms maps each phase to terms found in ERP status names. The
// completed set includes billing-queue names because companies configure a
// post-completion status like "Aguardando Faturamento" as the landing state.
var statusNameTerms = map[Phase][]string{
	PhaseStarted:   {"em andamento", "iniciada", "iniciado", "execucao", "in progress"},
	PhaseCompleted: {"faturamento", "finalizada", "finalizado", "concluida", "concluido", "completed", "done"},
	PhaseReported:  {"relatorio", "laudo", "reported"},
	PhaseCanceled:  {"cancelada", "cancelado", "canceled", "cancelled"},
}

// MatchesPhase reports whether an ERP status name reads as the given phase.
func MatchesPhase(statusName string, phase Phase) bool {
	normalized := matching.Normalize(statusName)
	if normalized == "" {
		return false
	}
	for _, term := range statusNameTerms[phase] {
		if strings.Contains(normalized, term) {
			return true
		}
	}
	return false
}
