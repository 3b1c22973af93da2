package ingest

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/coerce"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/composition"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/concentration"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/delimited"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/logging"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/record"
	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/vocab"
)

// Warning codes.
const (
	CodeLengthMismatch            = string(errors.ErrLengthMismatch)
	CodeUnrecognizedConcentration = string(errors.ErrUnrecognizedConcentration)
	CodeInvalidValue              = "INVALID_VALUE"
	CodeUnrecognizedValue         = "UNRECOGNIZED_VALUE"
	CodeMissingName               = "MISSING_NAME"
)

// BuildOptions control how rows become devices.
type BuildOptions struct {
	Workspace       string
	Source          string
	StrictAlignment bool
	Logger          *zap.Logger
}

// Result is the outcome of building one row.
type Result struct {
	Row      int
	Device   *record.Device // nil when the row was rejected
	Warnings []record.Warning
	Err      error // rejection reason
}

// Build turns one row into a device. Data-quality defects become warnings on
// the device; with StrictAlignment a length mismatch rejects the row instead.
func Build(row Row, opts BuildOptions) Result {
	b := &rowBuilder{
		row:    row,
		cells:  make(map[string]string, len(row.Cells)),
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
		dev:    &record.Device{},
	}
	for h := range row.Cells {
		c, ok := Canonical(h)
		if !ok {
			continue
		}
		// a canonical header wins over an alias
		if _, dup := b.cells[c]; dup && h != c {
			continue
		}
		b.cells[c] = row.Get(h)
	}

	b.buildDevice()
	b.buildLayers()
	b.buildPerovskite()
	b.buildJV()
	b.buildTandem()

	res := Result{Row: row.Index, Warnings: b.warnings}
	if opts.StrictAlignment && b.rejectErr != nil {
		res.Err = b.rejectErr
		return res
	}
	b.dev.Warnings = b.warnings
	res.Device = b.dev
	return res
}

type rowBuilder struct {
	row       Row
	cells     map[string]string
	opts      BuildOptions
	logger    *zap.Logger
	dev       *record.Device
	warnings  []record.Warning
	rejectErr *errors.CurationError
}

func (b *rowBuilder) get(col string) string {
	return b.cells[col]
}

func (b *rowBuilder) warn(field, code, msg string) {
	b.warnings = append(b.warnings, record.Warning{Row: b.row.Index, Field: field, Code: code, Message: msg})
	b.logger.Warn("data quality",
		zap.String("source", b.opts.Source),
		zap.Int("row", b.row.Index),
		zap.String("field", field),
		zap.String("code", code),
		zap.String("message", msg),
	)
}

func (b *rowBuilder) mismatch(field string, err error) {
	b.warn(field, CodeLengthMismatch, err.Error())
	if b.rejectErr != nil {
		return
	}
	var me *delimited.MismatchError
	if stderrors.As(err, &me) {
		b.rejectErr = errors.NewLengthMismatch(me.Fields, me.Counts)
	} else {
		b.rejectErr = errors.NewLengthMismatch([]string{field}, nil)
	}
	b.rejectErr.Details["row"] = b.row.Index
}

// measure coerces token into unit. Blank and "none" are absent, "nan" is unknown.
func (b *rowBuilder) measure(field, token, unit string) *record.Measure {
	if delimited.IsBlank(token) {
		return nil
	}
	v, unknown, ok := coerce.Measure(token, unit)
	switch {
	case !ok:
		b.warn(field, CodeInvalidValue, fmt.Sprintf("%q is not a number in %s", token, unitLabel(unit)))
		return nil
	case unknown:
		return record.UnknownMeasure(unit)
	}
	return record.Known(v, unit)
}

func unitLabel(unit string) string {
	if unit == "" {
		return "dimensionless units"
	}
	return unit
}

// category maps token onto a vocabulary; unrecognized values become "Unknown".
func (b *rowBuilder) category(kind vocab.Kind, field, token string) string {
	if token == "" {
		return ""
	}
	canonical, ok := vocab.Normalize(kind, token)
	if !ok {
		b.warn(field, CodeUnrecognizedValue, fmt.Sprintf("%q is not a known %s", token, kind))
	}
	return canonical
}

func (b *rowBuilder) concentration(field, token string) *concentration.Concentration {
	if delimited.IsBlank(token) || delimited.IsSentinel(token) {
		return nil
	}
	c, err := concentration.Classify(token)
	if err != nil {
		var ue *concentration.UnrecognizedError
		if stderrors.As(err, &ue) {
			b.warn(field, CodeUnrecognizedConcentration,
				errors.NewUnrecognizedConcentration(ue.Input, ue.Dimension.String()).Message)
		} else {
			b.warn(field, CodeInvalidValue, fmt.Sprintf("concentration %q: %v", token, err))
		}
		return nil
	}
	return &c
}

func (b *rowBuilder) buildDevice() {
	d := b.dev
	d.WorkspaceRaw = b.opts.Workspace
	d.WorkspaceNorm = record.Normalize(b.opts.Workspace)
	if b.opts.Source != "" {
		src := b.opts.Source
		d.Source = &src
	}

	name := b.get(ColRefID)
	if name == "" || delimited.IsSentinel(name) {
		name = fmt.Sprintf("row-%d", b.row.Index)
		b.warn(ColRefID, CodeMissingName, "no sample identifier; using "+name)
	}
	d.NameRaw = name
	d.NameNorm = record.Normalize(name)

	if ref := b.get(ColRefDOI); ref != "" && !delimited.IsSentinel(ref) {
		d.Reference = &ref
	}
	d.Architecture = b.category(vocab.Architectures, ColArchitecture, b.get(ColArchitecture))
	d.Area = b.measure(ColArea, b.get(ColArea), columnUnits[ColArea])

	if tok := b.get(ColFlexible); tok != "" && !delimited.IsSentinel(tok) {
		v := coerce.Coerce(tok, "")
		if v.Kind == coerce.Bool {
			flexible := v.Bool
			d.Flexible = &flexible
		} else {
			b.warn(ColFlexible, CodeInvalidValue, fmt.Sprintf("%q is not a boolean", tok))
		}
	}
}

func layerField(col string, layer int) string {
	return fmt.Sprintf("%s[%d]", col, layer+1)
}

func stepField(col string, layer, step int) string {
	return fmt.Sprintf("%s[%d][%d]", col, layer+1, step+1)
}

// splitAligned splits every present column with split and drops columns whose
// token count differs from the first present one.
func (b *rowBuilder) splitAligned(cols []string, value func(col string) (string, bool), split func(string) []string, field func(col string) string) (map[string][]string, int) {
	out := make(map[string][]string)
	n, ref := -1, ""
	for _, col := range cols {
		v, ok := value(col)
		if !ok {
			continue
		}
		parts := split(v)
		if n == -1 {
			n, ref = len(parts), col
			out[col] = parts
			continue
		}
		if err := delimited.CheckAligned(
			delimited.Field{Name: field(ref), Values: make([]string, n)},
			delimited.Field{Name: field(col), Values: parts},
		); err != nil {
			b.mismatch(field(col), err)
			continue
		}
		out[col] = parts
	}
	return out, n
}

func (b *rowBuilder) buildLayers() {
	byLayer, n := b.splitAligned(layerColumns,
		func(col string) (string, bool) {
			v := b.get(col)
			return v, !delimited.IsBlank(v)
		},
		delimited.SplitLayers,
		func(col string) string { return col },
	)
	if n <= 0 {
		return
	}

	layers := make([]record.Layer, n)
	for l := range layers {
		layer := &layers[l]
		if parts, ok := byLayer[ColStack]; ok {
			layer.Name = parts[l]
		}
		if parts, ok := byLayer[ColFunctionality]; ok {
			layer.Functionality = b.category(vocab.LayerFunctionalities, layerField(ColFunctionality, l), parts[l])
		}
		if parts, ok := byLayer[ColThickness]; ok {
			layer.Thickness = b.measure(layerField(ColThickness, l), parts[l], columnUnits[ColThickness])
		}
		layer.Steps = b.buildSteps(l, byLayer)
		if parts, ok := byLayer[ColAdditives]; ok {
			layer.Additives = b.solutes(
				layerField(ColAdditives, l), parts[l],
				layerField(ColAdditiveConcentrations, l), at(byLayer[ColAdditiveConcentrations], l),
			)
		}
	}
	b.dev.Layers = layers
}

func at(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func (b *rowBuilder) buildSteps(l int, byLayer map[string][]string) []record.Step {
	bySteps, m := b.splitAligned(stepColumns,
		func(col string) (string, bool) {
			parts, ok := byLayer[col]
			if !ok || delimited.IsBlank(parts[l]) {
				return "", false
			}
			return parts[l], true
		},
		delimited.SplitSteps,
		func(col string) string { return layerField(col, l) },
	)
	if m <= 0 {
		return nil
	}

	steps := make([]record.Step, m)
	for k := range steps {
		st := &steps[k]
		get := func(col string) string { return at(bySteps[col], k) }

		st.Method = b.category(vocab.DepositionMethods, stepField(ColProcedure, l, k), get(ColProcedure))
		st.Solvents = b.solvents(l, k, get(ColSolvents), get(ColSolventRatios))
		st.Solutes = b.solutes(
			stepField(ColCompounds, l, k), get(ColCompounds),
			stepField(ColConcentrations, l, k), get(ColConcentrations),
		)
		st.AnnealTemperature = b.measure(stepField(ColAnnealTemperature, l, k), get(ColAnnealTemperature), columnUnits[ColAnnealTemperature])
		st.AnnealTime = b.measure(stepField(ColAnnealTime, l, k), get(ColAnnealTime), columnUnits[ColAnnealTime])
		if atm := get(ColAtmosphere); !delimited.IsBlank(atm) {
			st.Atmosphere = b.category(vocab.Atmospheres, stepField(ColAtmosphere, l, k), atm)
		}
		st.Pressure = b.measure(stepField(ColPressure, l, k), get(ColPressure), columnUnits[ColPressure])
	}
	return steps
}

func (b *rowBuilder) solvents(l, k int, names, ratios string) []record.Solvent {
	if delimited.IsBlank(names) {
		return nil
	}
	nameField := stepField(ColSolvents, l, k)
	ratioField := stepField(ColSolventRatios, l, k)

	items := delimited.SplitItems(names)
	var ratioItems []string
	if !delimited.IsBlank(ratios) {
		ratioItems = delimited.SplitItems(ratios)
		if err := delimited.CheckAligned(
			delimited.Field{Name: nameField, Values: items},
			delimited.Field{Name: ratioField, Values: ratioItems},
		); err != nil {
			b.mismatch(ratioField, err)
			ratioItems = nil
		}
	}

	out := make([]record.Solvent, 0, len(items))
	for i, name := range items {
		s := record.Solvent{Name: b.category(vocab.Solvents, nameField, name)}
		if ratioItems != nil {
			s.MixingRatio = b.measure(ratioField, ratioItems[i], "")
		}
		out = append(out, s)
	}
	return out
}

// solutes pairs compounds with their concentrations item by item.
func (b *rowBuilder) solutes(nameField, names, concField, concs string) []record.Solute {
	if delimited.IsBlank(names) {
		return nil
	}
	items := delimited.SplitItems(names)
	var concItems []string
	if !delimited.IsBlank(concs) {
		concItems = delimited.SplitItems(concs)
		if err := delimited.CheckAligned(
			delimited.Field{Name: nameField, Values: items},
			delimited.Field{Name: concField, Values: concItems},
		); err != nil {
			b.mismatch(concField, err)
			concItems = nil
		}
	}

	out := make([]record.Solute, 0, len(items))
	for i, name := range items {
		s := record.Solute{Compound: name}
		if concItems != nil {
			s.Raw = concItems[i]
			s.Concentration = b.concentration(concField, concItems[i])
		}
		out = append(out, s)
	}
	return out
}

func (b *rowBuilder) buildPerovskite() {
	results, err := composition.FromFields(composition.Fields{
		AIons:         b.get(ColAIons),
		ACoefficients: b.get(ColACoefficients),
		BIons:         b.get(ColBIons),
		BCoefficients: b.get(ColBCoefficients),
		XIons:         b.get(ColCIons),
		XCoefficients: b.get(ColCCoefficients),
	})
	if err != nil {
		b.mismatch("perovskite_composition", err)
		results = nil
	}

	comps := make([]record.Composition, len(results))
	for i, r := range results {
		comps[i] = record.Composition{
			Ions:      r.Ions,
			ShortForm: r.Forms.ShortForm,
			LongForm:  r.Forms.LongForm,
			Formula:   r.Forms.Formula,
		}
	}

	if gaps := b.get(ColBandGap); gaps != "" {
		parts := delimited.SplitLayers(gaps)
		if len(comps) == 0 {
			comps = make([]record.Composition, len(parts))
		}
		if err := delimited.CheckAligned(
			delimited.Field{Name: "perovskite_composition", Values: make([]string, len(comps))},
			delimited.Field{Name: ColBandGap, Values: parts},
		); err != nil {
			b.mismatch(ColBandGap, err)
		} else {
			for i, p := range parts {
				comps[i].BandGap = b.measure(layerField(ColBandGap, i), p, columnUnits[ColBandGap])
			}
		}
	}

	if len(comps) > 0 {
		b.dev.Perovskite = comps
	}
}

func (b *rowBuilder) buildJV() {
	cols := []string{ColVoc, ColJsc, ColFF, ColPCE, ColRs}
	present := false
	for _, c := range cols {
		if b.get(c) != "" {
			present = true
			break
		}
	}
	if !present {
		return
	}
	m := func(col string) *record.Measure {
		return b.measure(col, b.get(col), columnUnits[col])
	}
	b.dev.JV = &record.JV{Voc: m(ColVoc), Jsc: m(ColJsc), FF: m(ColFF), PCE: m(ColPCE), Rs: m(ColRs)}
}

func (b *rowBuilder) buildTandem() {
	labels := b.get(ColTandemSubcells)
	terminals := b.get(ColTandemTerminals)
	if labels == "" && terminals == "" {
		return
	}
	t := &record.Tandem{}

	if terminals != "" && !delimited.IsSentinel(terminals) {
		v := coerce.Coerce(terminals, "")
		if v.Kind == coerce.Int {
			n := int(v.Int)
			t.Terminals = &n
		} else {
			b.warn(ColTandemTerminals, CodeInvalidValue, fmt.Sprintf("%q is not an integer", terminals))
		}
	}

	if !delimited.IsBlank(labels) {
		names := delimited.SplitLayers(labels)
		var pces []string
		if p := b.get(ColTandemSubcellPCE); p != "" {
			pces = delimited.SplitLayers(p)
			if err := delimited.CheckAligned(
				delimited.Field{Name: ColTandemSubcells, Values: names},
				delimited.Field{Name: ColTandemSubcellPCE, Values: pces},
			); err != nil {
				b.mismatch(ColTandemSubcellPCE, err)
				pces = nil
			}
		}
		for i, name := range names {
			s := record.Subcell{Label: name}
			if pces != nil {
				s.PCE = b.measure(layerField(ColTandemSubcellPCE, i), pces[i], columnUnits[ColTandemSubcellPCE])
			}
			t.Subcells = append(t.Subcells, s)
		}
	}
	b.dev.Tandem = t
}
