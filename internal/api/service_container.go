package api

import "github.com/gorilla/rpc"

// ServiceContainer groups every RPC service the node exposes, grounded
// on the teacher's ServiceContainer (FundingService + SwapService).
type ServiceContainer struct {
	ChannelService  *ChannelService
	TransferService *TransferService
	OnChainService  *OnChainService
}

func (s *ServiceContainer) RegisterServices(server *rpc.Server) {
	server.RegisterService(s.ChannelService, "")
	server.RegisterService(s.TransferService, "")
	server.RegisterService(s.OnChainService, "")
}
