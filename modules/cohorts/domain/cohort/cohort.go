package cohort

import "time"

type Kind string

const (
	KindProgram      Kind = "program"
	KindCenter       Kind = "center"
	KindMunicipality Kind = "municipality"
	KindStrategy     Kind = "strategy"
	KindGroup        Kind = "group"
	KindSnapshot     Kind = "snapshot"
)

var Kinds = []Kind{KindProgram, KindCenter, KindMunicipality, KindStrategy, KindGroup, KindSnapshot}

type Program struct {
	Code    string `validate:"required,max=20"`
	Version Opt[string]
	Name    Opt[string]
	Level   Opt[string]
	Network Opt[string]
	Type    Opt[string]
	Active  Opt[bool]
}

// Merge returns p with every absent attribute taken from stored.
func (p Program) Merge(stored Program) Program {
	p.Version = p.Version.Or(stored.Version)
	p.Name = p.Name.Or(stored.Name)
	p.Level = p.Level.Or(stored.Level)
	p.Network = p.Network.Or(stored.Network)
	p.Type = p.Type.Or(stored.Type)
	p.Active = p.Active.Or(stored.Active)
	return p
}

type Center struct {
	Code         int64 `validate:"gt=0"`
	Name         Opt[string]
	RegionalCode Opt[int64]
	RegionalName Opt[string]
	Data         Opt[string]
}

func (c Center) Merge(stored Center) Center {
	c.Name = c.Name.Or(stored.Name)
	c.RegionalCode = c.RegionalCode.Or(stored.RegionalCode)
	c.RegionalName = c.RegionalName.Or(stored.RegionalName)
	c.Data = c.Data.Or(stored.Data)
	return c
}

type Municipality struct {
	Code string `validate:"required,max=10"`
	Name Opt[string]
}

func (m Municipality) Merge(stored Municipality) Municipality {
	m.Name = m.Name.Or(stored.Name)
	return m
}

// Strategy rows only need to exist; the name is usually empty.
type Strategy struct {
	Code string `validate:"required,max=20"`
	Name string `validate:"max=100"`
}

type Group struct {
	Ficha            int64 `validate:"gt=0"`
	ProgramCode      Opt[string]
	CenterCode       Opt[int64]
	MunicipalityCode Opt[string]
	StrategyCode     Opt[string]
	Modality         Opt[string]
	Shift            Opt[string]
	Stage            Opt[string]
	Status           Opt[string]
	StatusCode       Opt[int64]
	StatusName       Opt[string]
	StartDate        Opt[time.Time]
	EndDate          Opt[time.Time]
	DurationMonths   Opt[int64]
	Responsible      Opt[string]
	Company          Opt[string]
	Enrolled         Opt[int64]
}

// Merge applies g over stored: present values in g win, absent ones keep stored.
func (g Group) Merge(stored Group) Group {
	g.ProgramCode = g.ProgramCode.Or(stored.ProgramCode)
	g.CenterCode = g.CenterCode.Or(stored.CenterCode)
	g.MunicipalityCode = g.MunicipalityCode.Or(stored.MunicipalityCode)
	g.StrategyCode = g.StrategyCode.Or(stored.StrategyCode)
	g.Modality = g.Modality.Or(stored.Modality)
	g.Shift = g.Shift.Or(stored.Shift)
	g.Stage = g.Stage.Or(stored.Stage)
	g.Status = g.Status.Or(stored.Status)
	g.StatusCode = g.StatusCode.Or(stored.StatusCode)
	g.StatusName = g.StatusName.Or(stored.StatusName)
	g.StartDate = g.StartDate.Or(stored.StartDate)
	g.EndDate = g.EndDate.Or(stored.EndDate)
	g.DurationMonths = g.DurationMonths.Or(stored.DurationMonths)
	g.Responsible = g.Responsible.Or(stored.Responsible)
	g.Company = g.Company.Or(stored.Company)
	g.Enrolled = g.Enrolled.Or(stored.Enrolled)
	return g
}

// Snapshot is the latest known set of learner counters for one group.
// Every upload overwrites all counters.
type Snapshot struct {
	Ficha    int64    `validate:"gt=0"`
	Counters Counters `validate:"dive,gte=0"`
}
