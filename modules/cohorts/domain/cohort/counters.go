package cohort

type Counter int

const (
	Inscribed Counter = iota
	InTransit
	InTraining
	InInduction
	Conditioned
	Postponed
	VoluntaryWithdrawal
	Canceled
	Failed
	NotQualified
	Reenrolled
	PendingCertification
	Certified
	Transferred

	NumCounters = int(Transferred) + 1
)

type Counters [NumCounters]int64

var counterColumns = [NumCounters]string{
	"num_aprendices_inscritos",
	"num_aprendices_en_transito",
	"num_aprendices_formacion",
	"num_aprendices_induccion",
	"num_aprendices_condicionados",
	"num_aprendices_aplazados",
	"num_aprendices_retirado_voluntario",
	"num_aprendices_cancelados",
	"num_aprendices_reprobados",
	"num_aprendices_no_aptos",
	"num_aprendices_reingresados",
	"num_aprendices_por_certificar",
	"num_aprendices_certificados",
	"num_aprendices_trasladados",
}

// Column is the canonical field and storage column name of the counter.
func (c Counter) Column() string { return counterColumns[c] }

func CounterColumns() []string {
	out := make([]string, NumCounters)
	copy(out, counterColumns[:])
	return out
}

func (c Counters) Get(counter Counter) int64 { return c[counter] }

func (c *Counters) Set(counter Counter, v int64) { c[counter] = v }
