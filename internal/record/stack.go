package record

import (
	"strings"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
)

// StackString renders the layer names in the curation convention,
// e.g. "SLG | FTO | TiO2-c | Perovskite | Spiro-MeOTAD | Au".
func (d *Device) StackString() string {
	names := make([]string, len(d.Layers))
	for i, l := range d.Layers {
		names[i] = l.Name
	}
	return delimited.Join(names, delimited.LayerSep)
}

// ProcedureString renders the layers' deposition methods, steps joined by
// " >> " and layers by " | ".
func (d *Device) ProcedureString() string {
	layers := make([][][]string, len(d.Layers))
	for i, l := range d.Layers {
		layers[i] = make([][]string, len(l.Steps))
		for j, s := range l.Steps {
			layers[i][j] = []string{s.Method}
		}
	}
	return delimited.JoinNested(layers)
}

// SearchText is the free text indexed for full-text search: layer names,
// methods, solvents, solutes, additives and composition forms.
func (d *Device) SearchText() string {
	var parts []string
	add := func(s string) {
		if s != "" && !delimited.IsSentinel(s) {
			parts = append(parts, s)
		}
	}
	for _, l := range d.Layers {
		add(l.Name)
		add(l.Functionality)
		for _, s := range l.Steps {
			add(s.Method)
			add(s.Atmosphere)
			for _, sv := range s.Solvents {
				add(sv.Name)
			}
			for _, so := range s.Solutes {
				add(so.Compound)
			}
		}
		for _, a := range l.Additives {
			add(a.Compound)
		}
	}
	for _, c := range d.Perovskite {
		add(c.ShortForm)
		add(c.LongForm)
	}
	return strings.Join(parts, " ")
}
