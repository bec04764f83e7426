// Package api implements the JSON-RPC methods of the batchdl daemon on top of
// a batchlib.Manager.
package api

import (
	"errors"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
	"github.com/warpdl/batchdl/pkg/logger"
)

type Api struct {
	log     logger.Logger
	manager *batchlib.Manager
	version common.VersionResult
}

func NewApi(l logger.Logger, m *batchlib.Manager, version common.VersionResult) *Api {
	return &Api{
		log:     logger.OrNop(l),
		manager: m,
		version: version,
	}
}

// Methods returns the method table served over HTTP and WebSocket.
func (s *Api) Methods() handler.Map {
	return handler.Map{
		common.METHOD_VERSION:     handler.New(s.versionHandler),
		common.METHOD_SYSTEM_INFO: handler.New(s.systemInfoHandler),

		common.METHOD_QUEUE_ADD:    handler.New(s.queueAddHandler),
		common.METHOD_QUEUE_START:  handler.New(s.queueStartHandler),
		common.METHOD_QUEUE_PAUSE:  handler.New(s.queuePauseHandler),
		common.METHOD_QUEUE_RESUME: handler.New(s.queueResumeHandler),
		common.METHOD_QUEUE_STOP:   handler.New(s.queueStopHandler),
		common.METHOD_QUEUE_STATUS: handler.New(s.queueStatusHandler),

		common.METHOD_BATCH_DISPATCH: handler.New(s.batchDispatchHandler),
		common.METHOD_BATCH_PAUSE:    handler.New(s.batchPauseHandler),
		common.METHOD_BATCH_RESUME:   handler.New(s.batchResumeHandler),
		common.METHOD_BATCH_STOP:     handler.New(s.batchStopHandler),
		common.METHOD_BATCH_LIST:     handler.New(s.batchListHandler),
	}
}

func (s *Api) Close() error {
	return s.manager.Close()
}

// rpcError maps manager errors to JSON-RPC error codes.
func rpcError(err error) error {
	if err == nil {
		return nil
	}
	code := jrpc2.Code(common.CodeInvalidState)
	switch {
	case errors.Is(err, batchlib.ErrBatchNotFound):
		code = common.CodeNotFound
	case errors.Is(err, batchlib.ErrEmptyBatch),
		errors.Is(err, batchlib.ErrEmptyURL),
		errors.Is(err, batchlib.ErrInvalidURL),
		errors.Is(err, batchlib.ErrMissingItemID),
		errors.Is(err, batchlib.ErrFileNameNotResolved),
		errors.Is(err, batchlib.ErrBatchExists),
		errors.Is(err, batchlib.ErrDuplicateItemID):
		code = common.CodeInvalidParams
	}
	return &jrpc2.Error{Code: code, Message: err.Error()}
}

func invalidParams(msg string) error {
	return &jrpc2.Error{Code: common.CodeInvalidParams, Message: msg}
}
