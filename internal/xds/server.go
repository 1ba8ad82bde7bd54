package xds

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	core "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	clusterservice "github.com/envoyproxy/go-control-plane/envoy/service/cluster/v3"
	discovery "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	endpointservice "github.com/envoyproxy/go-control-plane/envoy/service/endpoint/v3"
	listenerservice "github.com/envoyproxy/go-control-plane/envoy/service/listener/v3"
	routeservice "github.com/envoyproxy/go-control-plane/envoy/service/route/v3"
	serverv3 "github.com/envoyproxy/go-control-plane/pkg/server/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/flexcp/flexcp/internal/domain"
	"github.com/flexcp/flexcp/internal/snapshot"
	"github.com/flexcp/flexcp/internal/telemetry"
)

// RunGRPC starts the ADS gRPC server and blocks until ctx is cancelled or
// the listener itself fails. keepaliveTime/keepaliveTimeout come from
// config (env or CONFIG_FILE YAML overlay); a zero value falls back to the
// teacher's 30s/5s defaults.
func RunGRPC(ctx context.Context, adsServer serverv3.Server, port int, keepaliveTime, keepaliveTimeout time.Duration) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		slog.Error("failed to listen", "port", port, "error", err)
		os.Exit(1)
	}

	if keepaliveTime <= 0 {
		keepaliveTime = 30 * time.Second
	}
	if keepaliveTimeout <= 0 {
		keepaliveTimeout = 5 * time.Second
	}

	grpcOptions := []grpc.ServerOption{
		grpc.MaxConcurrentStreams(1000000),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    keepaliveTime,
			Timeout: keepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             keepaliveTime,
			PermitWithoutStream: true,
		}),
	}

	grpcServer := grpc.NewServer(grpcOptions...)

	discovery.RegisterAggregatedDiscoveryServiceServer(grpcServer, adsServer)
	clusterservice.RegisterClusterDiscoveryServiceServer(grpcServer, adsServer)
	endpointservice.RegisterEndpointDiscoveryServiceServer(grpcServer, adsServer)
	listenerservice.RegisterListenerDiscoveryServiceServer(grpcServer, adsServer)
	routeservice.RegisterRouteDiscoveryServiceServer(grpcServer, adsServer)

	slog.Info("registered discovery services", "port", port)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("ads server listening", "port", port)
		serveErr <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, stopping gRPC server")
		grpcServer.GracefulStop()
		<-serveErr
		slog.Info("gRPC server stopped")
	case err := <-serveErr:
		slog.Error("serve error", "error", err)
		os.Exit(1)
	}
}

// ServerCallbacks implements serverv3.Callbacks. Beyond logging and the
// stream/push/ACK/NACK metrics, its job is in OnStreamRequest: the first
// time a given node key streams in, it makes
// sure the snapshot cache has something to hand back, since a freshly
// created Team/Dataplane has never gone through a propagator-triggered
// rebuild yet.
type ServerCallbacks struct {
	serverv3.CallbackFuncs
	Snapshots *snapshot.Cache
	Metrics   *telemetry.Recorder
}

func (cb *ServerCallbacks) OnStreamOpen(ctx context.Context, streamID int64, typeURL string) error {
	slog.Debug("stream opened", "stream_id", streamID, "type_url", typeURL)
	if cb.Metrics != nil {
		cb.Metrics.XDSStreamsOpen.Inc()
	}
	return nil
}

func (cb *ServerCallbacks) OnStreamClosed(streamID int64, node *core.Node) {
	slog.Debug("stream closed", "stream_id", streamID, "node_id", node.Id)
	if cb.Metrics != nil {
		cb.Metrics.XDSStreamsOpen.Dec()
	}
}

// OnStreamRequest treats a request carrying a response_nonce as the
// client's verdict on the previous push: error_detail set means NACK,
// unset means ACK (spec 4.6.2's "log and emit a metric" on NACK). A
// request with no nonce is the stream's initial resource subscription,
// not a verdict on anything, so it is neither.
func (cb *ServerCallbacks) OnStreamRequest(streamID int64, req *discovery.DiscoveryRequest) error {
	slog.Debug("stream request",
		"stream_id", streamID,
		"node_id", req.Node.Id,
		"type_url", req.TypeUrl,
		"resource_names", req.ResourceNames,
		"response_nonce", req.ResponseNonce,
		"version_info", req.VersionInfo)

	if req.ResponseNonce != "" {
		if req.ErrorDetail != nil {
			slog.Warn("nack received",
				"stream_id", streamID,
				"node_id", req.Node.Id,
				"type_url", req.TypeUrl,
				"error", req.ErrorDetail.GetMessage())
			if cb.Metrics != nil {
				cb.Metrics.XDSNacks.WithLabelValues(req.TypeUrl).Inc()
			}
		} else if cb.Metrics != nil {
			cb.Metrics.XDSAcks.WithLabelValues(req.TypeUrl).Inc()
		}
	}

	key, err := domain.ParseNodeKey(req.Node.Id)
	if err != nil {
		slog.Error("rejecting stream with unparseable node id", "node_id", req.Node.Id, "error", err)
		return err
	}
	if err := cb.Snapshots.EnsureSnapshot(context.Background(), key); err != nil {
		slog.Error("ensuring snapshot for node", "node_key", key.String(), "error", err)
		return err
	}
	return nil
}

func (cb *ServerCallbacks) OnStreamResponse(ctx context.Context, streamID int64, req *discovery.DiscoveryRequest, resp *discovery.DiscoveryResponse) {
	if resp == nil {
		slog.Debug("stream response (nil)", "stream_id", streamID, "node_id", req.Node.Id, "type_url", req.TypeUrl)
		return
	}
	slog.Debug("stream response",
		"stream_id", streamID,
		"node_id", req.Node.Id,
		"type_url", req.TypeUrl,
		"resources", len(resp.Resources),
		"nonce", resp.Nonce,
		"version", resp.VersionInfo)
	if cb.Metrics != nil {
		cb.Metrics.XDSPushes.WithLabelValues(req.TypeUrl).Inc()
	}
}

func (cb *ServerCallbacks) OnDeltaStreamOpen(ctx context.Context, streamID int64, typeURL string) error {
	slog.Debug("delta stream opened", "stream_id", streamID, "type_url", typeURL)
	return nil
}

func (cb *ServerCallbacks) OnDeltaStreamClosed(streamID int64, node *core.Node) {
	slog.Debug("delta stream closed", "stream_id", streamID, "node_id", node.Id)
}

func (cb *ServerCallbacks) OnStreamDeltaRequest(streamID int64, req *discovery.DeltaDiscoveryRequest) error {
	slog.Debug("delta stream request", "stream_id", streamID, "node_id", req.Node.Id, "type_url", req.TypeUrl)
	return nil
}

func (cb *ServerCallbacks) OnStreamDeltaResponse(streamID int64, req *discovery.DeltaDiscoveryRequest, resp *discovery.DeltaDiscoveryResponse) {
	slog.Debug("delta stream response", "stream_id", streamID, "node_id", req.Node.Id, "type_url", resp.TypeUrl)
}
