package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del núcleo de federación y consent. Viven en un paquete aparte para
// evitar ciclos entre los servicios y el paquete HTTP que expone /metrics.

var (
	// ConsentDecisions cuenta evaluaciones del gate por resultado:
	// covered | prompt | forced.
	ConsentDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_decisions_total",
		Help: "Evaluaciones de autorización por resultado",
	}, []string{"result"})

	// ConsentPriorAuthorizationReuse cuenta evaluaciones cubiertas que
	// encontraron una autorización previa reutilizable.
	ConsentPriorAuthorizationReuse = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consent_prior_authorization_reuse_total",
		Help: "Evaluaciones cubiertas que reutilizan una autorización previa",
	})

	// ConsentGrants cuenta decisiones de grant por resultado: granted | insufficient.
	ConsentGrants = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_grants_total",
		Help: "Decisiones de consentimiento guardadas por resultado",
	}, []string{"result"})

	ConsentRevocations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consent_revocations_total",
		Help: "Consents revocados",
	})

	// AuditEntriesWritten cuenta entradas de auditoría por kind.
	AuditEntriesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consent_audit_entries_total",
		Help: "Entradas de auditoría escritas por kind",
	}, []string{"kind"})

	AuditTrimFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consent_audit_trim_failures_total",
		Help: "Fallos al recortar el historial de auditoría (no bloqueantes)",
	})

	AuditAppendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consent_audit_append_failures_total",
		Help: "Fallos al escribir una entrada de auditoría",
	})

	// IdentityResolutions cuenta resoluciones de identidad federada:
	// cache_hit | existing | created.
	IdentityResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "federation_identity_resolutions_total",
		Help: "Resoluciones (issuer, subject) → cuenta por origen",
	}, []string{"source"})

	// IdentityLinks cuenta vinculaciones por resultado: linked | already | conflict.
	IdentityLinks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "federation_identity_links_total",
		Help: "Vinculaciones de identidades por resultado",
	}, []string{"result"})
)

// Register registra las métricas del núcleo en reg (o el default si es nil).
// Es idempotente: AlreadyRegisteredError se ignora.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		ConsentDecisions,
		ConsentPriorAuthorizationReuse,
		ConsentGrants,
		ConsentRevocations,
		AuditEntriesWritten,
		AuditTrimFailures,
		AuditAppendFailures,
		IdentityResolutions,
		IdentityLinks,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
