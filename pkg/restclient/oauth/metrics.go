package oauth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Token request outcomes.
const (
	outcomeSuccess          = "success"
	outcomeUnexpectedStatus = "unexpected_status"
	outcomeInvalidResponse  = "invalid_response"
	outcomeTransportError   = "transport_error"
)

var tokenRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "restclient_oauth_token_requests_total",
		Help: "Total token endpoint calls by grant type and outcome",
	},
	[]string{"grant_type", "outcome"},
)

func recordTokenRequest(grantType, outcome string) {
	tokenRequestsTotal.WithLabelValues(grantType, outcome).Inc()
}
