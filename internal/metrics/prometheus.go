package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	CodesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_auth_codes_issued_total",
		Help: "Total number of authentication codes issued, by purpose.",
	}, []string{"purpose"})

	CodeValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_auth_code_validations_total",
		Help: "Total number of code validation attempts, by outcome.",
	}, []string{"outcome"})

	CodesSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keeper_auth_codes_swept_total",
		Help: "Total number of expired code records deleted by the sweeper.",
	})
)

// Register registers the service metrics with the given registerer. It should
// be called once at application startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(CodesIssuedTotal, CodeValidationsTotal, CodesSweptTotal)
	log.Info().Msg("Prometheus metrics registered")
}
