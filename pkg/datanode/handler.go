// Package datanode implements the stateless request handler and
// background flusher that sit on top of BlockManager. The RPC transport
// itself - framing, serialization, the listener - is an external
// collaborator; this package only translates already-decoded requests into
// BlockManager calls and already-computed results into responses.
package datanode

import (
	"context"
	"time"

	"github.com/StewAway/Distributed-File-System/internal/logger"
	"github.com/StewAway/Distributed-File-System/pkg/block"
	"github.com/StewAway/Distributed-File-System/pkg/blockmanager"
)

// ReadBlockRequest is the semantic payload of a ReadBlock call.
type ReadBlockRequest struct {
	ID     block.ID
	Offset uint32
	Length uint32
}

// ReadBlockResponse is the semantic payload of a ReadBlock reply.
type ReadBlockResponse struct {
	OK        bool
	Data      []byte
	BytesRead int
	Error     string
}

// WriteBlockRequest is the semantic payload of a WriteBlock call.
type WriteBlockRequest struct {
	ID     block.ID
	Offset uint32
	Data   []byte
	Sync   bool
}

// WriteBlockResponse is the semantic payload of a WriteBlock reply.
type WriteBlockResponse struct {
	OK    bool
	Error string
}

// DeleteBlockResponse is the semantic payload of a DeleteBlock reply.
type DeleteBlockResponse struct {
	OK    bool
	Error string
}

// GetBlockInfoResponse is the semantic payload of a GetBlockInfo reply.
type GetBlockInfoResponse struct {
	Exists        bool
	Size          int64
	CreatedAt     time.Time
	ContentDigest string
}

// HeartbeatResponse is the semantic payload of a Heartbeat reply.
type HeartbeatResponse struct {
	OK        bool
	NodeID    string
	Inventory []block.ID
}

// Handler is a stateless request handler over a single BlockManager. It
// holds no per-request state and is safe for concurrent use by the RPC
// framework's worker threads - all serialization happens inside
// BlockManager and the layers beneath it.
type Handler struct {
	nodeID string
	blocks *blockmanager.Manager
}

// New constructs a Handler identifying itself as nodeID on Heartbeat.
func New(nodeID string, blocks *blockmanager.Manager) *Handler {
	return &Handler{nodeID: nodeID, blocks: blocks}
}

// ReadBlock translates req into a BlockManager.ReadBlock call.
func (h *Handler) ReadBlock(ctx context.Context, req ReadBlockRequest) ReadBlockResponse {
	lc := h.requestLogContext(ctx, "ReadBlock", req.ID)
	defer logCompletion(ctx, lc)

	data, err := h.blocks.ReadBlock(req.ID, req.Offset, req.Length)
	if err != nil {
		logger.ErrorCtx(ctx, "datanode: ReadBlock failed", logger.BlockID(req.ID), logger.Err(err))
		return ReadBlockResponse{OK: false, Error: err.Error()}
	}
	return ReadBlockResponse{OK: true, Data: data, BytesRead: len(data)}
}

// WriteBlock translates req into a BlockManager.WriteBlock call.
func (h *Handler) WriteBlock(ctx context.Context, req WriteBlockRequest) WriteBlockResponse {
	lc := h.requestLogContext(ctx, "WriteBlock", req.ID)
	defer logCompletion(ctx, lc)

	if err := h.blocks.WriteBlock(req.ID, req.Offset, req.Data, req.Sync); err != nil {
		logger.ErrorCtx(ctx, "datanode: WriteBlock failed", logger.BlockID(req.ID), logger.Err(err))
		return WriteBlockResponse{OK: false, Error: err.Error()}
	}
	return WriteBlockResponse{OK: true}
}

// DeleteBlock translates a DeleteBlock call for id into a
// BlockManager.DeleteBlock call.
func (h *Handler) DeleteBlock(ctx context.Context, id block.ID) DeleteBlockResponse {
	lc := h.requestLogContext(ctx, "DeleteBlock", id)
	defer logCompletion(ctx, lc)

	if err := h.blocks.DeleteBlock(id); err != nil {
		logger.ErrorCtx(ctx, "datanode: DeleteBlock failed", logger.BlockID(id), logger.Err(err))
		return DeleteBlockResponse{OK: false, Error: err.Error()}
	}
	return DeleteBlockResponse{OK: true}
}

// GetBlockInfo reports metadata for id without mutating access_count.
func (h *Handler) GetBlockInfo(ctx context.Context, id block.ID) GetBlockInfoResponse {
	meta, ok := h.blocks.GetBlockMetadata(id)
	if !ok {
		return GetBlockInfoResponse{Exists: false}
	}
	return GetBlockInfoResponse{
		Exists:        true,
		Size:          meta.Size,
		CreatedAt:     meta.CreatedAt,
		ContentDigest: meta.ContentDigest,
	}
}

// Heartbeat reports liveness and the node's current block inventory for
// the master's replica bookkeeping. callerNodeID is the node_id the
// request carries; it is logged alongside h.nodeID but otherwise only
// h.nodeID - this handler's own identity - is ever reported back.
func (h *Handler) Heartbeat(ctx context.Context, callerNodeID string) HeartbeatResponse {
	lc := h.requestLogContext(ctx, "Heartbeat", 0)
	defer logCompletion(ctx, lc)

	if callerNodeID != "" && callerNodeID != h.nodeID {
		logger.WarnCtx(ctx, "datanode: heartbeat node_id mismatch",
			logger.NodeID(h.nodeID), "caller_node_id", callerNodeID)
	}
	return HeartbeatResponse{OK: true, NodeID: h.nodeID, Inventory: h.blocks.ListBlocks()}
}

// DirtyPageCount, CacheCapacity, and FlushDirtyPages are the diagnostic
// hooks the background flusher polls.
func (h *Handler) DirtyPageCount() int  { return h.blocks.DirtyPageCount() }
func (h *Handler) CacheCapacity() int   { return h.blocks.CacheCapacity() }
func (h *Handler) FlushDirtyPages() int { return h.blocks.FlushDirty() }

func (h *Handler) requestLogContext(ctx context.Context, procedure string, id block.ID) *logger.LogContext {
	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(h.nodeID)
	}
	return lc.WithProcedure(procedure).WithBlockID(id)
}

func logCompletion(ctx context.Context, lc *logger.LogContext) {
	logger.InfoCtx(ctx, "datanode: request completed",
		logger.Procedure(lc.Procedure), logger.BlockID(lc.BlockID), logger.DurationMs(lc.DurationMs()))
}
