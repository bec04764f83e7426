package common

import "github.com/warpdl/batchdl/pkg/batchlib"

// DEF_RPC_PORT is the loopback port the daemon listens on by default.
const DEF_RPC_PORT = 3849

// HTTP routes served by the daemon.
const (
	RPCPath   = "/jsonrpc"
	RPCWSPath = "/jsonrpc/ws"
)

// JSON-RPC method names.
const (
	METHOD_VERSION     = "system.getVersion"
	METHOD_SYSTEM_INFO = "system.info"

	METHOD_QUEUE_ADD    = "queue.add"
	METHOD_QUEUE_START  = "queue.start"
	METHOD_QUEUE_PAUSE  = "queue.pause"
	METHOD_QUEUE_RESUME = "queue.resume"
	METHOD_QUEUE_STOP   = "queue.stop"
	METHOD_QUEUE_STATUS = "queue.status"

	METHOD_BATCH_DISPATCH = "batch.dispatch"
	METHOD_BATCH_PAUSE    = "batch.pause"
	METHOD_BATCH_RESUME   = "batch.resume"
	METHOD_BATCH_STOP     = "batch.stop"
	METHOD_BATCH_LIST     = "batch.list"

	// NOTIFY_PROGRESS is pushed to WebSocket clients for every progress event.
	NOTIFY_PROGRESS = "download.progress"
)

// JSON-RPC error codes returned by the daemon.
const (
	CodeNotFound      = -32001
	CodeInvalidState  = -32002
	CodeInvalidParams = -32602
)

// Progress is the payload of NOTIFY_PROGRESS.
type Progress = batchlib.Progress
