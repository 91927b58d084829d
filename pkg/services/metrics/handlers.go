package metrics

import (
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/somnia-names/somns/pkg/config"
	"go.uber.org/zap"
)

// NewHandlerService creates a service serving the given handler on every
// configured address.
func NewHandlerService(name string, cfg config.BasicService, handler http.Handler, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, 0, len(addrs))
	for _, addr := range addrs {
		srvs = append(srvs, &http.Server{Addr: addr, Handler: handler})
	}
	return NewService(name, srvs, cfg, log)
}

// NewPrometheusService creates a service exposing registry metrics from the
// default Prometheus registerer.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	return NewHandlerService("Prometheus", cfg, promhttp.Handler(), log)
}

// NewPprofService creates a service exposing runtime profiles.
func NewPprofService(cfg config.BasicService, log *zap.Logger) *Service {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return NewHandlerService("Pprof", cfg, mux, log)
}
