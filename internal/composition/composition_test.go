package composition

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
)

func TestBuildForms(t *testing.T) {
	tests := []struct {
		name string
		ions []Ion
		want Forms
	}{
		{
			name: "mixed halide",
			ions: []Ion{
				{Site: "A", Abbreviation: "Cs", Coefficient: "1", MolecularFormula: "Cs"},
				{Site: "B", Abbreviation: "Pb", Coefficient: "1", MolecularFormula: "Pb"},
				{Site: "X", Abbreviation: "Br", Coefficient: "0.9", MolecularFormula: "Br"},
				{Site: "X", Abbreviation: "I", Coefficient: "2.1", MolecularFormula: "I"},
			},
			want: Forms{ShortForm: "CsPbBrI", LongForm: "CsPbBr0.9I2.1", Formula: "(Cs)1(Pb)1(Br)0.9(I)2.1"},
		},
		{
			name: "input order does not matter",
			ions: []Ion{
				{Site: "X", Abbreviation: "I", Coefficient: "3", MolecularFormula: "I-"},
				{Site: "B", Abbreviation: "Pb", Coefficient: "1.0", MolecularFormula: "Pb2+"},
				{Site: "A", Abbreviation: "MA", Coefficient: "1", MolecularFormula: "CH6N"},
			},
			want: Forms{ShortForm: "MAPbI", LongForm: "MAPbI3", Formula: "(CH6N)1(Pb)1(I)3"},
		},
		{
			name: "missing coefficient halts after short form",
			ions: []Ion{
				{Site: "A", Abbreviation: "Cs", Coefficient: "1", MolecularFormula: "Cs"},
				{Site: "B", Abbreviation: "Pb", MolecularFormula: "Pb"},
			},
			want: Forms{ShortForm: "CsPb", LongForm: "Cs", Formula: "(Cs)1"},
		},
		{
			name: "missing formula halts after long form",
			ions: []Ion{
				{Site: "A", Abbreviation: "Cs", Coefficient: "0.05", MolecularFormula: "Cs"},
				{Site: "A", Abbreviation: "FA", Coefficient: "0.950"},
				{Site: "B", Abbreviation: "Pb", Coefficient: "1", MolecularFormula: "Pb"},
			},
			want: Forms{ShortForm: "CsFA", LongForm: "Cs0.05FA0.95", Formula: "(Cs)0.05"},
		},
		{
			name: "missing abbreviation halts everything",
			ions: []Ion{
				{Site: "A", Abbreviation: "Cs", Coefficient: "1", MolecularFormula: "Cs"},
				{Site: "B", Coefficient: "1", MolecularFormula: "Pb"},
				{Site: "X", Abbreviation: "I", Coefficient: "3", MolecularFormula: "I"},
			},
			want: Forms{ShortForm: "Cs", LongForm: "Cs", Formula: "(Cs)1"},
		},
		{
			name: "unspecified coefficient kept",
			ions: []Ion{
				{Site: "A", Abbreviation: "MA", Coefficient: "x", MolecularFormula: "CH6N"},
			},
			want: Forms{ShortForm: "MA", LongForm: "MAx", Formula: "(CH6N)x"},
		},
		{
			name: "empty",
			want: Forms{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildForms(tt.ions)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BuildForms mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCleanCoefficient(t *testing.T) {
	tests := map[string]string{
		"0.500": "0.5",
		"1.0":   "1",
		"1":     "1",
		"10":    "10",
		"2.10":  "2.1",
		"0.0":   "0",
		" 3 ":   "3",
		"x":     "x",
	}
	for in, want := range tests {
		if got := CleanCoefficient(in); got != want {
			t.Errorf("CleanCoefficient(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanMolecularFormula(t *testing.T) {
	tests := map[string]string{
		"Pb2+":   "Pb",
		"I-":     "I",
		"Cs+":    "Cs",
		"CH6N+":  "CH6N",
		"PbI2":   "PbI2",
		"Sn":     "Sn",
		// digits before a bare sign are charge
		"BF4-":   "BF",
		"BF4^-":  "BF4",
		"SO4^2-": "SO4",
		"Pb^2+":  "Pb",
	}
	for in, want := range tests {
		if got := CleanMolecularFormula(in); got != want {
			t.Errorf("CleanMolecularFormula(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromFields(t *testing.T) {
	got, err := FromFields(Fields{
		AIons:         "Cs; FA",
		ACoefficients: "0.05; 0.95",
		BIons:         "Pb",
		BCoefficients: "1",
		XIons:         "Br; I",
		XCoefficients: "0.45; 2.55",
	})
	if err != nil {
		t.Fatalf("FromFields error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(got))
	}
	want := Forms{
		ShortForm: "CsFAPbBrI",
		LongForm:  "Cs0.05FA0.95PbBr0.45I2.55",
		Formula:   "(Cs)0.05(CH5N2)0.95(Pb)1(Br)0.45(I)2.55",
	}
	if diff := cmp.Diff(want, got[0].Forms); diff != "" {
		t.Errorf("forms mismatch (-want +got):\n%s", diff)
	}
	if len(got[0].Ions) != 5 {
		t.Errorf("expected 5 ions, got %d", len(got[0].Ions))
	}
}

func TestFromFields_Layers(t *testing.T) {
	got, err := FromFields(Fields{
		AIons:         "MA | Cs",
		ACoefficients: "1 | 1",
		BIons:         "Pb | Pb",
		BCoefficients: "1 | 1",
		XIons:         "I | Br",
		XCoefficients: "3 | 3",
	})
	if err != nil {
		t.Fatalf("FromFields error: %v", err)
	}
	var forms []string
	for _, r := range got {
		forms = append(forms, r.Forms.LongForm)
	}
	if diff := cmp.Diff([]string{"MAPbI3", "CsPbBr3"}, forms); diff != "" {
		t.Errorf("long forms mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFields_Sentinels(t *testing.T) {
	got, err := FromFields(Fields{
		AIons:         "MA",
		ACoefficients: "nan",
		BIons:         "Pb",
		BCoefficients: "1",
	})
	if err != nil {
		t.Fatalf("FromFields error: %v", err)
	}
	want := Forms{ShortForm: "MA"}
	if diff := cmp.Diff(want, got[0].Forms); diff != "" {
		t.Errorf("forms mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFields_Mismatch(t *testing.T) {
	tests := []struct {
		name string
		f    Fields
	}{
		{"item level", Fields{AIons: "Cs; FA", ACoefficients: "1"}},
		{"layer level", Fields{AIons: "MA | Cs", ACoefficients: "1", BIons: "Pb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromFields(tt.f)
			var me *delimited.MismatchError
			if !errors.As(err, &me) {
				t.Fatalf("expected *MismatchError, got %v", err)
			}
			if got != nil {
				t.Errorf("expected no results on mismatch, got %v", got)
			}
		})
	}
}

func TestFromFields_Blank(t *testing.T) {
	got, err := FromFields(Fields{AIons: "none"})
	if err != nil || got != nil {
		t.Errorf("FromFields(blank) = %v, %v", got, err)
	}
}
