package normalize

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fillers between commas",
			input: "Paciente, eh, tiene dolor, este, y mmm fatiga",
			want:  "Paciente, tiene dolor, y fatiga",
		},
		{
			name:  "case insensitive",
			input: "EH paciente Pues consciente",
			want:  "paciente consciente",
		},
		{
			name:  "accented filler",
			input: "ajá, refiere dolor Ajá",
			want:  ", refiere dolor",
		},
		{
			name:  "multi word filler",
			input: "dolor o sea fuerte",
			want:  "dolor fuerte",
		},
		{
			name:  "multi word filler across whitespace",
			input: "dolor o \t sea fuerte",
			want:  "dolor fuerte",
		},
		{
			name:  "filler revealed by removal",
			input: "dolor o eh sea fuerte",
			want:  "dolor fuerte",
		},
		{
			name:  "whitespace runs",
			input: "  Paciente    con \t varios\n espacios  ",
			want:  "Paciente con varios espacios",
		},
		{
			name:  "vertical tab run",
			input: "dolor \v  fuerte",
			want:  "dolor fuerte",
		},
		{
			name:  "no-break space run",
			input: "dolor\u00a0\u00a0 fuerte \u00a0,fiebre",
			want:  "dolor fuerte,fiebre",
		},
		{
			name:  "multi word filler across no-break space",
			input: "dolor o\u00a0sea fuerte",
			want:  "dolor fuerte",
		},
		{
			name:  "space before comma and comma runs",
			input: "dolor ,, , fiebre",
			want:  "dolor, fiebre",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only fillers",
			input: "eh mmm pues",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeKeepsFillersInsideWords(t *testing.T) {
	tests := []string{
		"estetoscopio",
		"ahora",
		"emergencia",
		"después",
		"bajá la camilla",
		"pueste",
		"mmmm",
		"eh_1",
	}
	for _, input := range tests {
		if got := Normalize(input); got != input {
			t.Errorf("Normalize(%q) = %q, want input unchanged", input, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Paciente, eh, tiene dolor, este, y mmm fatiga",
		"o eh sea , , , pues",
		" ,eh, ,",
		"a , , b",
		"ajá ajá ajá",
		"dolor\n\n, fiebre,,,",
		"o o sea sea",
		"Ah, em... bueno, eh",
	}
	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", input, once, twice)
		}
	}
}

func TestNormalizeNoDoubleSpaces(t *testing.T) {
	inputs := []string{
		"a  b   c",
		"eh eh eh a eh eh b",
		"a ,  , b",
		"x\t\t\ty",
		"x\v \u00a0\u2003y",
	}
	for _, input := range inputs {
		if got := Normalize(input); strings.Contains(got, "  ") {
			t.Errorf("Normalize(%q) = %q contains a double space", input, got)
		}
	}
}

func TestNewCustomVocabulary(t *testing.T) {
	n := New([]string{"um", "you know", "  "})

	got := n.Normalize("the patient um you know has chest pain")
	if got != "the patient has chest pain" {
		t.Errorf("Normalize() = %q, want %q", got, "the patient has chest pain")
	}

	// Spanish defaults are not part of a custom vocabulary.
	if got := n.Normalize("eh hola"); got != "eh hola" {
		t.Errorf("Normalize() = %q, want %q", got, "eh hola")
	}
}

func TestNewEmptyVocabulary(t *testing.T) {
	n := New(nil)
	if got := n.Normalize("eh   hola ,,"); got != "eh hola," {
		t.Errorf("Normalize() = %q, want %q", got, "eh hola,")
	}
}
