package ingest

import (
	"math"
	"strconv"
	"time"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

type FieldType int

const (
	TypeInteger FieldType = iota
	TypeDate
	TypeText
	TypeBool
)

func (t FieldType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeDate:
		return "date"
	case TypeText:
		return "text"
	case TypeBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// Field is a canonical column: its type, storage limit and where the
// converted value lands in a Record.
type Field struct {
	Name     string
	Type     FieldType
	MaxLen   int
	Required bool
	Counter  bool
	// Max bounds integer values; zero means the int64 range.
	Max int64

	assign func(*Record, cell)
	key    func(*Record) string
}

type cell struct {
	i int64
	s string
	t time.Time
	b bool
}

func textField(name string, maxLen int, at func(*Record) *cohort.Opt[string]) Field {
	return Field{
		Name:   name,
		Type:   TypeText,
		MaxLen: maxLen,
		assign: func(r *Record, c cell) { *at(r) = cohort.Some(c.s) },
		key:    func(r *Record) string { return at(r).String() },
	}
}

func intField(name string, at func(*Record) *cohort.Opt[int64]) Field {
	return Field{
		Name:   name,
		Type:   TypeInteger,
		assign: func(r *Record, c cell) { *at(r) = cohort.Some(c.i) },
		key:    func(r *Record) string { return at(r).String() },
	}
}

// smallIntField is an integer stored in a 32-bit column.
func smallIntField(name string, at func(*Record) *cohort.Opt[int64]) Field {
	f := intField(name, at)
	f.Max = math.MaxInt32
	return f
}

func dateField(name string, at func(*Record) *cohort.Opt[time.Time]) Field {
	return Field{
		Name:   name,
		Type:   TypeDate,
		assign: func(r *Record, c cell) { *at(r) = cohort.Some(c.t) },
		key: func(r *Record) string {
			if t, ok := at(r).Get(); ok {
				return t.Format(time.DateOnly)
			}
			return "\x00"
		},
	}
}

func boolField(name string, at func(*Record) *cohort.Opt[bool]) Field {
	return Field{
		Name:   name,
		Type:   TypeBool,
		assign: func(r *Record, c cell) { *at(r) = cohort.Some(c.b) },
		key:    func(r *Record) string { return at(r).String() },
	}
}

func counterField(counter cohort.Counter) Field {
	return Field{
		Name:    counter.Column(),
		Type:    TypeInteger,
		Counter: true,
		Max:     math.MaxInt32,
		assign:  func(r *Record, c cell) { r.Counters.Set(counter, c.i) },
		key:     func(r *Record) string { return strconv.FormatInt(r.Counters.Get(counter), 10) },
	}
}

const FieldFicha = "ficha"

var fichaField = Field{
	Name:     FieldFicha,
	Type:     TypeInteger,
	Required: true,
	assign:   func(r *Record, c cell) { r.Ficha = c.i },
	key:      func(r *Record) string { return strconv.FormatInt(r.Ficha, 10) },
}

// historicoFields is ordered like the 36-column export the regional
// offices produce; positional fallback relies on that order.
var historicoFields = []Field{
	intField("cod_regional", func(r *Record) *cohort.Opt[int64] { return &r.RegionalCode }),
	textField("nombre_regional", 100, func(r *Record) *cohort.Opt[string] { return &r.RegionalName }),
	intField("cod_centro", func(r *Record) *cohort.Opt[int64] { return &r.CenterCode }),
	textField("nombre_centro", 50, func(r *Record) *cohort.Opt[string] { return &r.CenterName }),
	textField("datos_centro", 255, func(r *Record) *cohort.Opt[string] { return &r.CenterData }),
	textField("cod_programa", 20, func(r *Record) *cohort.Opt[string] { return &r.ProgramCode }),
	textField("version", 10, func(r *Record) *cohort.Opt[string] { return &r.ProgramVersion }),
	textField("tipo_programa", 50, func(r *Record) *cohort.Opt[string] { return &r.ProgramType }),
	textField("nivel", 50, func(r *Record) *cohort.Opt[string] { return &r.ProgramLevel }),
	textField("jornada", 50, func(r *Record) *cohort.Opt[string] { return &r.Shift }),
	textField("cod_municipio", 10, func(r *Record) *cohort.Opt[string] { return &r.MunicipalityCode }),
	textField("nombre_municipio", 100, func(r *Record) *cohort.Opt[string] { return &r.MunicipalityName }),
	textField("cod_estrategia", 20, func(r *Record) *cohort.Opt[string] { return &r.StrategyCode }),
	textField("modalidad", 50, func(r *Record) *cohort.Opt[string] { return &r.Modality }),
	fichaField,
	dateField("fecha_inicio", func(r *Record) *cohort.Opt[time.Time] { return &r.StartDate }),
	dateField("fecha_fin", func(r *Record) *cohort.Opt[time.Time] { return &r.EndDate }),
	smallIntField("duracion_meses", func(r *Record) *cohort.Opt[int64] { return &r.DurationMonths }),
	textField("estado_curso", 50, func(r *Record) *cohort.Opt[string] { return &r.Status }),
	intField("codigo_estado", func(r *Record) *cohort.Opt[int64] { return &r.StatusCode }),
	textField("nombre_estado", 50, func(r *Record) *cohort.Opt[string] { return &r.StatusName }),
	counterField(cohort.Inscribed),
	smallIntField("num_aprendices_matriculados", func(r *Record) *cohort.Opt[int64] { return &r.Enrolled }),
	counterField(cohort.InTransit),
	counterField(cohort.InTraining),
	counterField(cohort.InInduction),
	counterField(cohort.Conditioned),
	counterField(cohort.Postponed),
	counterField(cohort.VoluntaryWithdrawal),
	counterField(cohort.Canceled),
	counterField(cohort.Failed),
	counterField(cohort.NotQualified),
	counterField(cohort.Reenrolled),
	counterField(cohort.PendingCertification),
	counterField(cohort.Certified),
	counterField(cohort.Transferred),

	textField("nombre_programa", 255, func(r *Record) *cohort.Opt[string] { return &r.ProgramName }),
	textField("red_conocimiento", 100, func(r *Record) *cohort.Opt[string] { return &r.ProgramNetwork }),
	boolField("programa_activo", func(r *Record) *cohort.Opt[bool] { return &r.ProgramActive }),
	textField("etapa_ficha", 50, func(r *Record) *cohort.Opt[string] { return &r.Stage }),
	textField("nombre_responsable", 150, func(r *Record) *cohort.Opt[string] { return &r.Responsible }),
	textField("nombre_empresa", 150, func(r *Record) *cohort.Opt[string] { return &r.Company }),
}

// standardLayoutWidth is the column count of the fixed export layout.
const standardLayoutWidth = 36

// Family is the set of canonical fields one upload type understands.
type Family struct {
	Name   string
	Fields []Field
	// Layout lists canonical names by position for exports whose headers
	// carry no usable names. Empty disables positional fallback.
	Layout []string
}

// Historico is the historical cohort upload: groups, their parents and
// the learner counters.
var Historico = Family{
	Name:   "historico",
	Fields: historicoFields,
	Layout: fieldNames(historicoFields[:standardLayoutWidth]),
}

// Grupos is the group listing upload (PE04 export): programs, centers and
// group attributes without learner counters. Rows lacking a center or a
// program reference are dropped.
var Grupos = Historico.Subset("grupos",
	"cod_centro", "cod_programa", "version", "nombre_programa", "nivel", "jornada",
	"nombre_municipio", "modalidad", FieldFicha, "fecha_inicio", "fecha_fin",
	"estado_curso", "etapa_ficha", "nombre_responsable", "nombre_empresa",
).Require("cod_centro", "cod_programa")

// Families lists the upload types by name.
var Families = []Family{Historico, Grupos}

func FamilyByName(name string) (Family, bool) {
	for _, f := range Families {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

func FamilyNames() []string {
	out := make([]string, len(Families))
	for i, f := range Families {
		out[i] = f.Name
	}
	return out
}

func fieldNames(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func (f Family) Field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

func (f Family) Names() []string { return fieldNames(f.Fields) }

// Subset narrows the family to the named fields, keeping declaration order.
// Positional fallback is dropped since the layout no longer applies.
func (f Family) Subset(name string, names ...string) Family {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := Family{Name: name}
	for _, field := range f.Fields {
		if _, ok := want[field.Name]; ok {
			out.Fields = append(out.Fields, field)
		}
	}
	return out
}

// Require returns a copy of the family with the named fields required.
func (f Family) Require(names ...string) Family {
	out := f
	out.Fields = append([]Field(nil), f.Fields...)
	for i := range out.Fields {
		for _, n := range names {
			if out.Fields[i].Name == n {
				out.Fields[i].Required = true
			}
		}
	}
	return out
}

// HasCounters reports whether the family carries snapshot counters.
func (f Family) HasCounters() bool {
	for _, field := range f.Fields {
		if field.Counter {
			return true
		}
	}
	return false
}

// DefaultCompareFields is the duplicate-row key: the full fixed layout,
// which covers the group attributes and every counter.
func DefaultCompareFields() []string {
	return append([]string(nil), Historico.Layout...)
}
