// Package api is the JSON-RPC front door onto internal/engine, grounded
// on the teacher's internal/api (gorilla/rpc server, ServiceContainer,
// one service struct per concern) but re-keyed to the four protocol
// operations from spec.md §4 instead of LN funding/swap calls.
package api

import (
	"net/http"

	"github.com/gorilla/rpc"
	"github.com/gorilla/rpc/json"
	"go.uber.org/zap"

	"github.com/kyokan/statechannel/internal/logger"
)

const StatusOk = "OK"

var sLog *zap.SugaredLogger

func init() {
	sLog = logger.Logger.Named("api-server")
}

// Start registers every service on container and blocks serving JSON-RPC
// over HTTP at addr:port, exactly as the teacher's api.Start does.
func Start(container *ServiceContainer, addr string, port string) error {
	sLog.Infow("starting services", "listen-ip", addr, "listen-port", port)
	s := rpc.NewServer()
	s.RegisterCodec(json.NewCodec(), "application/json")
	container.RegisterServices(s)

	mux := http.NewServeMux()
	mux.Handle("/rpc", s)
	return http.ListenAndServe(addr+":"+port, mux)
}
