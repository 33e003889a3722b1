package handler

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/platform/grpcjson"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

const ServiceName = "omnipos.inventory.v1.InventoryService"

type InventoryServiceServer interface {
	InitializeInventory(context.Context, *InitializeInventoryRequest) (*InventoryEntry, error)
	AdjustInventory(context.Context, *AdjustInventoryRequest) (*InventoryEntry, error)
	GetInventory(context.Context, *GetInventoryRequest) (*InventoryEntry, error)
	ListInventory(context.Context, *ListInventoryRequest) (*ListInventoryResponse, error)
	ReserveStock(context.Context, *ReserveStockRequest) (*Reservation, error)
	ReserveCart(context.Context, *ReserveCartRequest) (*ReserveCartResponse, error)
	CompleteReservation(context.Context, *ReservationRequest) (*Reservation, error)
	CancelReservation(context.Context, *ReservationRequest) (*Reservation, error)
	GetReservation(context.Context, *ReservationRequest) (*Reservation, error)
	ListReservations(context.Context, *ListReservationsRequest) (*ListReservationsResponse, error)
	ProcessReturn(context.Context, *ProcessReturnRequest) (*InventoryEntry, error)
	ListMovements(context.Context, *ListMovementsRequest) (*ListMovementsResponse, error)
	ListAlerts(context.Context, *ListAlertsRequest) (*ListAlertsResponse, error)
	AcknowledgeAlert(context.Context, *AcknowledgeAlertRequest) (*Alert, error)
	RunExpirySweep(context.Context, *emptypb.Empty) (*RunExpirySweepResponse, error)
	ReconcileAlerts(context.Context, *emptypb.Empty) (*ReconcileAlertsResponse, error)
}

// unary adapts a typed server method to a grpc.MethodDesc.
func unary[Req, Resp any](name string, call func(InventoryServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InventoryServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(InventoryServiceServer), ctx, req.(*Req))
			})
		},
	}
}

var InventoryService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("InitializeInventory", InventoryServiceServer.InitializeInventory),
		unary("AdjustInventory", InventoryServiceServer.AdjustInventory),
		unary("GetInventory", InventoryServiceServer.GetInventory),
		unary("ListInventory", InventoryServiceServer.ListInventory),
		unary("ReserveStock", InventoryServiceServer.ReserveStock),
		unary("ReserveCart", InventoryServiceServer.ReserveCart),
		unary("CompleteReservation", InventoryServiceServer.CompleteReservation),
		unary("CancelReservation", InventoryServiceServer.CancelReservation),
		unary("GetReservation", InventoryServiceServer.GetReservation),
		unary("ListReservations", InventoryServiceServer.ListReservations),
		unary("ProcessReturn", InventoryServiceServer.ProcessReturn),
		unary("ListMovements", InventoryServiceServer.ListMovements),
		unary("ListAlerts", InventoryServiceServer.ListAlerts),
		unary("AcknowledgeAlert", InventoryServiceServer.AcknowledgeAlert),
		unary("RunExpirySweep", InventoryServiceServer.RunExpirySweep),
		unary("ReconcileAlerts", InventoryServiceServer.ReconcileAlerts),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/inventory/v1/inventory.proto",
}

func RegisterInventoryServiceServer(s grpc.ServiceRegistrar, srv InventoryServiceServer) {
	s.RegisterService(&InventoryService_ServiceDesc, srv)
}

// InventoryServiceClient calls the service with the JSON codec.
type InventoryServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInventoryServiceClient(cc grpc.ClientConnInterface) *InventoryServiceClient {
	return &InventoryServiceClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(grpcjson.Name)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InventoryServiceClient) InitializeInventory(ctx context.Context, in *InitializeInventoryRequest, opts ...grpc.CallOption) (*InventoryEntry, error) {
	return invoke[InitializeInventoryRequest, InventoryEntry](ctx, c.cc, "InitializeInventory", in, opts)
}

func (c *InventoryServiceClient) AdjustInventory(ctx context.Context, in *AdjustInventoryRequest, opts ...grpc.CallOption) (*InventoryEntry, error) {
	return invoke[AdjustInventoryRequest, InventoryEntry](ctx, c.cc, "AdjustInventory", in, opts)
}

func (c *InventoryServiceClient) GetInventory(ctx context.Context, in *GetInventoryRequest, opts ...grpc.CallOption) (*InventoryEntry, error) {
	return invoke[GetInventoryRequest, InventoryEntry](ctx, c.cc, "GetInventory", in, opts)
}

func (c *InventoryServiceClient) ListInventory(ctx context.Context, in *ListInventoryRequest, opts ...grpc.CallOption) (*ListInventoryResponse, error) {
	return invoke[ListInventoryRequest, ListInventoryResponse](ctx, c.cc, "ListInventory", in, opts)
}

func (c *InventoryServiceClient) ReserveStock(ctx context.Context, in *ReserveStockRequest, opts ...grpc.CallOption) (*Reservation, error) {
	return invoke[ReserveStockRequest, Reservation](ctx, c.cc, "ReserveStock", in, opts)
}

func (c *InventoryServiceClient) ReserveCart(ctx context.Context, in *ReserveCartRequest, opts ...grpc.CallOption) (*ReserveCartResponse, error) {
	return invoke[ReserveCartRequest, ReserveCartResponse](ctx, c.cc, "ReserveCart", in, opts)
}

func (c *InventoryServiceClient) CompleteReservation(ctx context.Context, in *ReservationRequest, opts ...grpc.CallOption) (*Reservation, error) {
	return invoke[ReservationRequest, Reservation](ctx, c.cc, "CompleteReservation", in, opts)
}

func (c *InventoryServiceClient) CancelReservation(ctx context.Context, in *ReservationRequest, opts ...grpc.CallOption) (*Reservation, error) {
	return invoke[ReservationRequest, Reservation](ctx, c.cc, "CancelReservation", in, opts)
}

func (c *InventoryServiceClient) GetReservation(ctx context.Context, in *ReservationRequest, opts ...grpc.CallOption) (*Reservation, error) {
	return invoke[ReservationRequest, Reservation](ctx, c.cc, "GetReservation", in, opts)
}

func (c *InventoryServiceClient) ListReservations(ctx context.Context, in *ListReservationsRequest, opts ...grpc.CallOption) (*ListReservationsResponse, error) {
	return invoke[ListReservationsRequest, ListReservationsResponse](ctx, c.cc, "ListReservations", in, opts)
}

func (c *InventoryServiceClient) ProcessReturn(ctx context.Context, in *ProcessReturnRequest, opts ...grpc.CallOption) (*InventoryEntry, error) {
	return invoke[ProcessReturnRequest, InventoryEntry](ctx, c.cc, "ProcessReturn", in, opts)
}

func (c *InventoryServiceClient) ListMovements(ctx context.Context, in *ListMovementsRequest, opts ...grpc.CallOption) (*ListMovementsResponse, error) {
	return invoke[ListMovementsRequest, ListMovementsResponse](ctx, c.cc, "ListMovements", in, opts)
}

func (c *InventoryServiceClient) ListAlerts(ctx context.Context, in *ListAlertsRequest, opts ...grpc.CallOption) (*ListAlertsResponse, error) {
	return invoke[ListAlertsRequest, ListAlertsResponse](ctx, c.cc, "ListAlerts", in, opts)
}

func (c *InventoryServiceClient) AcknowledgeAlert(ctx context.Context, in *AcknowledgeAlertRequest, opts ...grpc.CallOption) (*Alert, error) {
	return invoke[AcknowledgeAlertRequest, Alert](ctx, c.cc, "AcknowledgeAlert", in, opts)
}

func (c *InventoryServiceClient) RunExpirySweep(ctx context.Context, opts ...grpc.CallOption) (*RunExpirySweepResponse, error) {
	return invoke[emptypb.Empty, RunExpirySweepResponse](ctx, c.cc, "RunExpirySweep", &emptypb.Empty{}, opts)
}

func (c *InventoryServiceClient) ReconcileAlerts(ctx context.Context, opts ...grpc.CallOption) (*ReconcileAlertsResponse, error) {
	return invoke[emptypb.Empty, ReconcileAlertsResponse](ctx, c.cc, "ReconcileAlerts", &emptypb.Empty{}, opts)
}
