package ingest

import (
	"time"

	"github.com/softdata/cohortsync/modules/cohorts/domain/cohort"
)

// Record is one normalized spreadsheet row. Every optional attribute keeps
// track of whether the source supplied it.
type Record struct {
	Line  int
	Ficha int64

	RegionalCode cohort.Opt[int64]
	RegionalName cohort.Opt[string]
	CenterCode   cohort.Opt[int64]
	CenterName   cohort.Opt[string]
	CenterData   cohort.Opt[string]

	ProgramCode    cohort.Opt[string]
	ProgramVersion cohort.Opt[string]
	ProgramName    cohort.Opt[string]
	ProgramType    cohort.Opt[string]
	ProgramLevel   cohort.Opt[string]
	ProgramNetwork cohort.Opt[string]
	ProgramActive  cohort.Opt[bool]

	MunicipalityCode cohort.Opt[string]
	MunicipalityName cohort.Opt[string]
	StrategyCode     cohort.Opt[string]

	Shift          cohort.Opt[string]
	Modality       cohort.Opt[string]
	Stage          cohort.Opt[string]
	Status         cohort.Opt[string]
	StatusCode     cohort.Opt[int64]
	StatusName     cohort.Opt[string]
	StartDate      cohort.Opt[time.Time]
	EndDate        cohort.Opt[time.Time]
	DurationMonths cohort.Opt[int64]
	Responsible    cohort.Opt[string]
	Company        cohort.Opt[string]
	Enrolled       cohort.Opt[int64]

	Counters cohort.Counters
}

func (r Record) Program() (cohort.Program, bool) {
	code, ok := r.ProgramCode.Get()
	if !ok {
		return cohort.Program{}, false
	}
	return cohort.Program{
		Code:    code,
		Version: r.ProgramVersion,
		Name:    r.ProgramName,
		Level:   r.ProgramLevel,
		Network: r.ProgramNetwork,
		Type:    r.ProgramType,
		Active:  r.ProgramActive,
	}, true
}

func (r Record) Center() (cohort.Center, bool) {
	code, ok := r.CenterCode.Get()
	if !ok {
		return cohort.Center{}, false
	}
	return cohort.Center{
		Code:         code,
		Name:         r.CenterName,
		RegionalCode: r.RegionalCode,
		RegionalName: r.RegionalName,
		Data:         r.CenterData,
	}, true
}

func (r Record) Municipality() (cohort.Municipality, bool) {
	code, ok := r.MunicipalityCode.Get()
	if !ok {
		return cohort.Municipality{}, false
	}
	return cohort.Municipality{Code: code, Name: r.MunicipalityName}, true
}

func (r Record) Strategy() (cohort.Strategy, bool) {
	code, ok := r.StrategyCode.Get()
	if !ok {
		return cohort.Strategy{}, false
	}
	return cohort.Strategy{Code: code}, true
}

func (r Record) Group() cohort.Group {
	return cohort.Group{
		Ficha:            r.Ficha,
		ProgramCode:      r.ProgramCode,
		CenterCode:       r.CenterCode,
		MunicipalityCode: r.MunicipalityCode,
		StrategyCode:     r.StrategyCode,
		Modality:         r.Modality,
		Shift:            r.Shift,
		Stage:            r.Stage,
		Status:           r.Status,
		StatusCode:       r.StatusCode,
		StatusName:       r.StatusName,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		DurationMonths:   r.DurationMonths,
		Responsible:      r.Responsible,
		Company:          r.Company,
		Enrolled:         r.Enrolled,
	}
}

func (r Record) Snapshot() cohort.Snapshot {
	return cohort.Snapshot{Ficha: r.Ficha, Counters: r.Counters}
}
