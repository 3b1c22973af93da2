package units

import "strings"

type definition struct {
	factor     float64 // multiply to reach the coherent SI unit
	offset     float64 // added after scaling (affine temperature scales)
	dim        Dimension
	prefixable bool
}

var (
	force    = Mass.Mul(Length).Div(Time.Pow(2))
	energy   = force.Mul(Length)
	power    = energy.Div(Time)
	pressure = force.Div(Length.Pow(2))
	voltage  = power.Div(Current)
	molarity = Substance.Div(Volume)
)

// registry lists every unit symbol and name understood by Parse.
var registry = map[string]definition{
	// length
	"m":        {factor: 1, dim: Length, prefixable: true},
	"meter":    {factor: 1, dim: Length},
	"metre":    {factor: 1, dim: Length},
	"angstrom": {factor: 1e-10, dim: Length},
	"Å":        {factor: 1e-10, dim: Length},

	// mass
	"g":    {factor: 1e-3, dim: Mass, prefixable: true},
	"gram": {factor: 1e-3, dim: Mass},

	// time
	"s":       {factor: 1, dim: Time, prefixable: true},
	"sec":     {factor: 1, dim: Time},
	"second":  {factor: 1, dim: Time},
	"seconds": {factor: 1, dim: Time},
	"min":     {factor: 60, dim: Time},
	"minute":  {factor: 60, dim: Time},
	"minutes": {factor: 60, dim: Time},
	"h":       {factor: 3600, dim: Time},
	"hr":      {factor: 3600, dim: Time},
	"hour":    {factor: 3600, dim: Time},
	"hours":   {factor: 3600, dim: Time},
	"day":     {factor: 86400, dim: Time},
	"days":    {factor: 86400, dim: Time},

	// current
	"A":      {factor: 1, dim: Current, prefixable: true},
	"ampere": {factor: 1, dim: Current},

	// temperature
	"K":          {factor: 1, dim: Temperature, prefixable: true},
	"kelvin":     {factor: 1, dim: Temperature},
	"celsius":    {factor: 1, offset: 273.15, dim: Temperature},
	"degC":       {factor: 1, offset: 273.15, dim: Temperature},
	"°C":         {factor: 1, offset: 273.15, dim: Temperature},
	"fahrenheit": {factor: 5.0 / 9.0, offset: 273.15 - 32*5.0/9.0, dim: Temperature},
	"degF":       {factor: 5.0 / 9.0, offset: 273.15 - 32*5.0/9.0, dim: Temperature},

	// amount of substance
	"mol":   {factor: 1, dim: Substance, prefixable: true},
	"mole":  {factor: 1, dim: Substance},
	"M":     {factor: 1000, dim: molarity, prefixable: true},
	"molar": {factor: 1000, dim: molarity},

	// volume
	"l":      {factor: 1e-3, dim: Volume, prefixable: true},
	"L":      {factor: 1e-3, dim: Volume, prefixable: true},
	"liter":  {factor: 1e-3, dim: Volume},
	"litre":  {factor: 1e-3, dim: Volume},
	"liters": {factor: 1e-3, dim: Volume},

	// pressure
	"Pa":   {factor: 1, dim: pressure, prefixable: true},
	"bar":  {factor: 1e5, dim: pressure, prefixable: true},
	"atm":  {factor: 101325, dim: pressure},
	"Torr": {factor: 101325.0 / 760.0, dim: pressure},
	"torr": {factor: 101325.0 / 760.0, dim: pressure},

	// electrical and energy
	"N":    {factor: 1, dim: force, prefixable: true},
	"J":    {factor: 1, dim: energy, prefixable: true},
	"eV":   {factor: 1.602176634e-19, dim: energy, prefixable: true},
	"W":    {factor: 1, dim: power, prefixable: true},
	"V":    {factor: 1, dim: voltage, prefixable: true},
	"volt": {factor: 1, dim: voltage},
	"ohm":  {factor: 1, dim: voltage.Div(Current), prefixable: true},
	"Ohm":  {factor: 1, dim: voltage.Div(Current), prefixable: true},
	"Ω":    {factor: 1, dim: voltage.Div(Current), prefixable: true},

	// frequency
	"Hz":  {factor: 1, dim: Time.Pow(-1), prefixable: true},
	"rpm": {factor: 1.0 / 60.0, dim: Time.Pow(-1)},

	// dimensionless ratios
	"percent":        {factor: 1e-2},
	"%":              {factor: 1e-2},
	"weight_percent": {factor: 1e-2},
	"volume_percent": {factor: 1e-2},
	"mol_percent":    {factor: 1e-2},
	"wt%":            {factor: 1e-2},
	"vol%":           {factor: 1e-2},
	"mol%":           {factor: 1e-2},
	"ppm":            {factor: 1e-6},
	"ppb":            {factor: 1e-9},
	"ppt":            {factor: 1e-12},
}

// prefixes are tried longest first so "da" wins over "d".
var prefixes = []struct {
	symbol string
	factor float64
}{
	{"da", 1e1},
	{"Y", 1e24}, {"Z", 1e21}, {"E", 1e18}, {"P", 1e15}, {"T", 1e12},
	{"G", 1e9}, {"M", 1e6}, {"k", 1e3}, {"h", 1e2},
	{"d", 1e-1}, {"c", 1e-2}, {"m", 1e-3},
	{"u", 1e-6}, {"µ", 1e-6}, {"μ", 1e-6},
	{"n", 1e-9}, {"p", 1e-12}, {"f", 1e-15}, {"a", 1e-18},
}

// lookup resolves a single unit name, trying an exact match before SI prefixes.
func lookup(name string) (definition, bool) {
	if def, ok := registry[name]; ok {
		return def, true
	}
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(name, p.symbol)
		if !ok || rest == "" {
			continue
		}
		def, ok := registry[rest]
		if !ok || !def.prefixable {
			continue
		}
		def.factor *= p.factor
		def.prefixable = false
		return def, true
	}
	return definition{}, false
}
