package api

import (
	"context"
	"fmt"

	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
)

func (s *Api) batchDispatchHandler(_ context.Context, p *common.BatchDispatchParams) (*common.BatchDispatchResult, error) {
	if p == nil || len(p.Items) == 0 {
		return nil, rpcError(batchlib.ErrEmptyBatch)
	}
	items := make([]batchlib.Item, 0, len(p.Items))
	for i := range p.Items {
		item, err := toItem(&p.Items[i])
		if err != nil {
			return nil, invalidParams(fmt.Sprintf("item %d: %v", i, err))
		}
		items = append(items, item)
	}
	id, owned, err := s.manager.DispatchBatch(p.ID, items)
	if err != nil {
		return nil, rpcError(err)
	}
	return &common.BatchDispatchResult{ID: id, Items: owned}, nil
}

func batchID(p *common.BatchParams) (string, error) {
	if p == nil || p.ID == "" {
		return "", invalidParams("missing required param: id")
	}
	return p.ID, nil
}

func (s *Api) batchPauseHandler(_ context.Context, p *common.BatchParams) (*common.EmptyResult, error) {
	id, err := batchID(p)
	if err != nil {
		return nil, err
	}
	if err := s.manager.PauseBatch(id); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (s *Api) batchResumeHandler(_ context.Context, p *common.BatchParams) (*common.EmptyResult, error) {
	id, err := batchID(p)
	if err != nil {
		return nil, err
	}
	if err := s.manager.ResumeBatch(id); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (s *Api) batchStopHandler(_ context.Context, p *common.BatchParams) (*common.EmptyResult, error) {
	id, err := batchID(p)
	if err != nil {
		return nil, err
	}
	if err := s.manager.StopBatch(id); err != nil {
		return nil, rpcError(err)
	}
	return &common.EmptyResult{}, nil
}

func (s *Api) batchListHandler(_ context.Context) (*common.BatchListResult, error) {
	return &common.BatchListResult{Batches: s.manager.Batches()}, nil
}
