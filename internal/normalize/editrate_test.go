package normalize

import (
	"math"
	"testing"
)

func TestEditRate(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		wantRate   float64
		wantSubs   int
		wantIns    int
		wantDels   int
		wantRef    int
	}{
		{
			name:       "identical",
			reference:  "paciente con dolor torácico",
			hypothesis: "paciente con dolor torácico",
			wantRef:    4,
		},
		{
			name:       "one substitution",
			reference:  "paciente con dolor toraxico",
			hypothesis: "paciente con dolor torácico",
			wantRate:   1.0 / 4.0,
			wantSubs:   1,
			wantRef:    4,
		},
		{
			name:       "one insertion",
			reference:  "dolor torácico",
			hypothesis: "dolor torácico agudo",
			wantRate:   1.0 / 2.0,
			wantIns:    1,
			wantRef:    2,
		},
		{
			name:       "one deletion",
			reference:  "se administra aspirina oral",
			hypothesis: "se administra aspirina",
			wantRate:   1.0 / 4.0,
			wantDels:   1,
			wantRef:    4,
		},
		{
			name:       "case and punctuation ignored",
			reference:  "Paciente, Juan.",
			hypothesis: "paciente juan",
			wantRef:    2,
		},
		{
			name:       "empty hypothesis",
			reference:  "dolor fiebre",
			hypothesis: "",
			wantRate:   1.0,
			wantDels:   2,
			wantRef:    2,
		},
		{
			name:       "empty reference",
			reference:  "",
			hypothesis: "dolor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EditRate(tt.reference, tt.hypothesis)
			if math.Abs(got.Rate-tt.wantRate) > 1e-9 {
				t.Errorf("Rate = %f, want %f", got.Rate, tt.wantRate)
			}
			if got.Substitutions != tt.wantSubs {
				t.Errorf("Substitutions = %d, want %d", got.Substitutions, tt.wantSubs)
			}
			if got.Insertions != tt.wantIns {
				t.Errorf("Insertions = %d, want %d", got.Insertions, tt.wantIns)
			}
			if got.Deletions != tt.wantDels {
				t.Errorf("Deletions = %d, want %d", got.Deletions, tt.wantDels)
			}
			if got.RefWords != tt.wantRef {
				t.Errorf("RefWords = %d, want %d", got.RefWords, tt.wantRef)
			}
		})
	}
}
