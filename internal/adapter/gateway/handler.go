package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"weighbridge/internal/domain"
	"weighbridge/internal/usecase"
)

// HandlerDeps holds dependencies needed by RPC handlers.
type HandlerDeps struct {
	Service *usecase.Service
	Logger  *slog.Logger
}

// batchComputeParams is the payload for the batch.compute method.
type batchComputeParams struct {
	WarehouseID string `json:"warehouse_id"`
	BatchID     string `json:"batch_id"`
}

// RegisterRPCHandlers wires the orchestrator's operations onto the gateway.
func RegisterRPCHandlers(s *Server, deps HandlerDeps) {
	s.RegisterHandler("batch.compute", handleBatchCompute(deps))
	s.RegisterHandler("cache.clear", handleCacheClear(deps))
	s.RegisterHandler("connection.status", handleConnectionStatus(deps))
}

func handleBatchCompute(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var params batchComputeParams
		if err := json.Unmarshal(payload, &params); err != nil {
			return nil, domain.NewDomainError("gateway.batch.compute", domain.ErrRPCInvalidPayload, err.Error())
		}
		if params.BatchID == "" {
			return nil, domain.NewDomainError("gateway.batch.compute", domain.ErrRPCInvalidPayload, "batch_id is required")
		}

		res, err := deps.Service.ComputeBatchWeightSummary(ctx, params.WarehouseID, domain.BatchID(params.BatchID))
		if err != nil {
			deps.Logger.Warn("batch compute failed",
				"client", client.Name, "batch", params.BatchID, "error", err)
			return nil, err
		}
		return json.Marshal(res)
	}
}

func handleCacheClear(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		deps.Service.ClearCache(ctx)
		deps.Logger.Info("cache cleared via gateway", "client", client.Name)
		return json.Marshal(map[string]bool{"cleared": true})
	}
}

func handleConnectionStatus(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(deps.Service.ConnectionStatus())
	}
}
