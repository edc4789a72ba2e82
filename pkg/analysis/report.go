package analysis

// Report is the sealed variant type for a run's analysis output. Exactly
// three shapes exist, so a caller can switch on the concrete type instead
// of probing optional fields:
//
//	switch r := report.(type) {
//	case analysis.FidelityOnly:
//	case analysis.Full:
//	}
//
// A nil Report means analysis was skipped entirely.
type Report interface {
	isReport()
}

// FidelityOnly carries just the factual-retention guardrails. Produced when
// no sample text is available to fingerprint against.
type FidelityOnly struct {
	Fidelity FidelityGuardrails
}

func (FidelityOnly) isReport() {}

// Full carries the complete audit: guardrails, mirror scores, and the three
// raw fingerprints for display.
type Full struct {
	Fidelity FidelityGuardrails
	Mirror   MirrorScore

	Sample DetailedMetrics
	Draft  DetailedMetrics
	Output DetailedMetrics
}

func (Full) isReport() {}

// Audit is the standard full analysis pass: fingerprints sample, draft, and
// output, scores the mirror similarity, and runs the fidelity guardrails on
// the draft/output pair. When sample is empty it degrades to [FidelityOnly].
func (a *Analyzer) Audit(sample, draft, output string) Report {
	fidelity := a.CalculateFidelityGuardrails(draft, output)
	if sample == "" {
		return FidelityOnly{Fidelity: fidelity}
	}
	return Full{
		Fidelity: fidelity,
		Mirror:   a.GenerateMirrorScore(sample, draft, output),
		Sample:   a.CalculateMetrics(sample),
		Draft:    a.CalculateMetrics(draft),
		Output:   a.CalculateMetrics(output),
	}
}
