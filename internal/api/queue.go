package api

import (
	"context"

	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
)

// toItem validates p and fills in the file name from the URL when absent.
func toItem(p *common.ItemParams) (batchlib.Item, error) {
	if p == nil || p.URL == "" {
		return batchlib.Item{}, invalidParams("missing required param: url")
	}
	item, err := batchlib.NewItem(p.URL, p.Dir, p.FileName)
	if err != nil {
		return batchlib.Item{}, rpcError(err)
	}
	if p.ID != "" {
		item.ID = p.ID
	}
	return item, nil
}

// queueAddHandler appends one item to the global queue.
func (s *Api) queueAddHandler(_ context.Context, p *common.ItemParams) (*common.AddResult, error) {
	item, err := toItem(p)
	if err != nil {
		return nil, err
	}
	item, err = s.manager.Enqueue(item)
	if err != nil {
		return nil, rpcError(err)
	}
	s.log.Info("queued %s -> %s", item.URL, item.Path())
	return &common.AddResult{Item: item}, nil
}

func (s *Api) queueStartHandler(_ context.Context) (*common.EmptyResult, error) {
	return &common.EmptyResult{}, rpcError(s.manager.Start())
}

func (s *Api) queuePauseHandler(_ context.Context) (*common.EmptyResult, error) {
	return &common.EmptyResult{}, rpcError(s.manager.Pause())
}

func (s *Api) queueResumeHandler(_ context.Context) (*common.EmptyResult, error) {
	return &common.EmptyResult{}, rpcError(s.manager.Resume())
}

func (s *Api) queueStopHandler(_ context.Context) (*common.EmptyResult, error) {
	return &common.EmptyResult{}, rpcError(s.manager.Stop())
}

// queueStatusHandler returns the lifecycle, active ids and waiting ids of the
// global queue.
func (s *Api) queueStatusHandler(_ context.Context) (*common.QueueStatusResult, error) {
	st := s.manager.QueueStatus()
	return &st, nil
}
