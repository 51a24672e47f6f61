package workflow

import (
	"fmt"
	"strings"

	"github.com/chaz8081/ambudictate/internal/store"
)

// Summary renders a saved record as plain text for display or export.
func Summary(rec store.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Consecutivo: %s\n", rec.SequenceID)
	fmt.Fprintf(&b, "Fecha: %s\n", rec.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Paciente: %s\n", rec.PatientName)
	fmt.Fprintf(&b, "Edad: %s\n", rec.Age)
	fmt.Fprintf(&b, "Motivo: %s\n", rec.Reason)
	fmt.Fprintf(&b, "Diagnóstico: %s\n", orDash(rec.Diagnosis))
	fmt.Fprintf(&b, "Tratamiento: %s\n", orDash(rec.Treatment))
	return b.String()
}

// DraftSummary renders the draft with required fields marked.
func DraftSummary(d Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  patient_name* : %s\n", orDash(d.PatientName))
	fmt.Fprintf(&b, "  age*          : %s\n", orDash(d.Age))
	fmt.Fprintf(&b, "  reason*       : %s\n", orDash(d.Reason))
	fmt.Fprintf(&b, "  diagnosis     : %s\n", orDash(d.Diagnosis))
	fmt.Fprintf(&b, "  treatment     : %s\n", orDash(d.Treatment))
	fmt.Fprintf(&b, "  text          : %s\n", orDash(d.Text))
	if d.CorrectedText != "" {
		fmt.Fprintf(&b, "  corrected     : %s\n", d.CorrectedText)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
