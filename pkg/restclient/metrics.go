package restclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts calls by method and response status ("error" for transport failures)
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restclient_requests_total",
			Help: "Total REST calls by method and response status",
		},
		[]string{"method", "status"},
	)

	// handlerErrorsTotal counts response handler failures
	handlerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restclient_response_handler_errors_total",
			Help: "Total response handler errors by reason",
		},
		[]string{"reason"},
	)
)

func recordRequest(method string, status int) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func recordTransportError(method string) {
	requestsTotal.WithLabelValues(method, "error").Inc()
}

func recordHandlerError(reason string) {
	handlerErrorsTotal.WithLabelValues(reason).Inc()
}
