package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	LinksIssued    prometheus.Counter
	ReferralClicks prometheus.Counter
	InvalidTokens  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		LinksIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "affinet_affiliate_links_issued_total",
			Help: "Total number of referral links generated",
		}),
		ReferralClicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "affinet_affiliate_clicks_total",
			Help: "Total number of referral link clicks attributed",
		}),
		InvalidTokens: promauto.NewCounter(prometheus.CounterOpts{
			Name: "affinet_affiliate_invalid_tokens_total",
			Help: "Total number of referral tokens rejected at verification",
		}),
	}
}

func (m *Metrics) IncrementLinksIssued() {
	if m == nil {
		return
	}
	m.LinksIssued.Inc()
}

func (m *Metrics) IncrementClicks() {
	if m == nil {
		return
	}
	m.ReferralClicks.Inc()
}

func (m *Metrics) IncrementInvalidTokens() {
	if m == nil {
		return
	}
	m.InvalidTokens.Inc()
}
