package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TransactionsProcessed *prometheus.CounterVec
	TransactionAmount     *prometheus.HistogramVec
	CommissionPaid        prometheus.Counter
	EscrowSettlements     *prometheus.CounterVec
	InsufficientFunds     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TransactionsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "affinet_ledger_transactions_total",
			Help: "Total ledger transactions processed, by kind and terminal status",
		}, []string{"kind", "status"}),
		TransactionAmount: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "affinet_ledger_transaction_amount",
			Help:    "Gross transaction amount in native currency units",
			Buckets: prometheus.ExponentialBuckets(1, 10, 7),
		}, []string{"kind"}),
		CommissionPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "affinet_ledger_commission_paid_total",
			Help: "Cumulative commission distributed to the referral chain, in native units",
		}),
		EscrowSettlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "affinet_ledger_escrow_settlements_total",
			Help: "Escrow settlements, by outcome (released, cancelled, lost_race)",
		}, []string{"outcome"}),
		InsufficientFunds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "affinet_ledger_insufficient_funds_total",
			Help: "Transactions rejected for insufficient purse balance",
		}),
	}
}

func (m *Metrics) ObserveTransaction(kind, status string, gross float64) {
	if m == nil {
		return
	}
	m.TransactionsProcessed.WithLabelValues(kind, status).Inc()
	m.TransactionAmount.WithLabelValues(kind).Observe(gross)
}

func (m *Metrics) AddCommission(amount float64) {
	if m == nil {
		return
	}
	m.CommissionPaid.Add(amount)
}

func (m *Metrics) IncrementEscrowSettlement(outcome string) {
	if m == nil {
		return
	}
	m.EscrowSettlements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementInsufficientFunds() {
	if m == nil {
		return
	}
	m.InsufficientFunds.Inc()
}
