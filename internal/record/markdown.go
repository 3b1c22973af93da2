package record

import (
	"fmt"
	"strings"
)

// Markdown renders a human-readable description of the device.
func (d *Device) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.NameRaw)

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "- **%s:** %s\n", label, value)
		}
	}
	field("Workspace", d.WorkspaceRaw)
	if d.Reference != nil {
		field("Reference", *d.Reference)
	}
	field("Architecture", d.Architecture)
	field("Stack", d.StackString())
	field("Area", d.Area.String())
	if d.Flexible != nil {
		field("Flexible", fmt.Sprint(*d.Flexible))
	}
	if d.Source != nil {
		field("Source", *d.Source)
	}

	if len(d.Perovskite) > 0 {
		b.WriteString("\n## Perovskite\n\n")
		for _, c := range d.Perovskite {
			line := c.LongForm
			if line == "" {
				line = c.ShortForm
			}
			if c.Formula != "" {
				line += " (" + c.Formula + ")"
			}
			if c.BandGap != nil {
				line += ", band gap " + c.BandGap.String()
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	if len(d.Layers) > 0 {
		b.WriteString("\n## Layers\n\n")
		for i, l := range d.Layers {
			fmt.Fprintf(&b, "%d. **%s**", i+1, l.Name)
			if l.Functionality != "" {
				fmt.Fprintf(&b, " (%s)", l.Functionality)
			}
			if l.Thickness != nil {
				fmt.Fprintf(&b, ", %s", l.Thickness)
			}
			b.WriteString("\n")
			for j, s := range l.Steps {
				fmt.Fprintf(&b, "    - step %d: %s\n", j+1, describeStep(s))
			}
			if len(l.Additives) > 0 {
				fmt.Fprintf(&b, "    - additives: %s\n", describeSolutes(l.Additives))
			}
		}
	}

	if d.JV != nil {
		b.WriteString("\n## JV\n\n")
		field("Voc", d.JV.Voc.String())
		field("Jsc", d.JV.Jsc.String())
		field("FF", d.JV.FF.String())
		field("PCE", d.JV.PCE.String())
		field("Rs", d.JV.Rs.String())
	}

	if d.Tandem != nil {
		b.WriteString("\n## Tandem\n\n")
		if d.Tandem.Terminals != nil {
			field("Terminals", fmt.Sprint(*d.Tandem.Terminals))
		}
		for _, s := range d.Tandem.Subcells {
			line := s.Label
			if s.PCE != nil {
				line += ": PCE " + s.PCE.String()
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	if len(d.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range d.Warnings {
			fmt.Fprintf(&b, "- `%s` %s: %s\n", w.Code, w.Field, w.Message)
		}
	}
	return b.String()
}

func describeStep(s Step) string {
	var parts []string
	if s.Method != "" {
		parts = append(parts, s.Method)
	}
	if len(s.Solvents) > 0 {
		names := make([]string, len(s.Solvents))
		for i, sv := range s.Solvents {
			names[i] = sv.Name
			if sv.MixingRatio != nil {
				names[i] += " " + sv.MixingRatio.String()
			}
		}
		parts = append(parts, "in "+strings.Join(names, ", "))
	}
	if len(s.Solutes) > 0 {
		parts = append(parts, "with "+describeSolutes(s.Solutes))
	}
	if s.AnnealTemperature != nil || s.AnnealTime != nil {
		anneal := "annealed"
		if s.AnnealTemperature != nil {
			anneal += " at " + s.AnnealTemperature.String()
		}
		if s.AnnealTime != nil {
			anneal += " for " + s.AnnealTime.String()
		}
		parts = append(parts, anneal)
	}
	if s.Atmosphere != "" {
		parts = append(parts, "under "+s.Atmosphere)
	}
	if s.Pressure != nil {
		parts = append(parts, "at "+s.Pressure.String())
	}
	if len(parts) == 0 {
		return "unspecified"
	}
	return strings.Join(parts, ", ")
}

func describeSolutes(solutes []Solute) string {
	out := make([]string, len(solutes))
	for i, s := range solutes {
		out[i] = s.Compound
		switch {
		case s.Concentration != nil:
			out[i] += " " + s.Concentration.Value.String()
		case s.Raw != "":
			out[i] += " " + s.Raw
		}
	}
	return strings.Join(out, ", ")
}
