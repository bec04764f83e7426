package api

import (
	"context"

	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
)

// versionHandler returns the version the daemon was built with.
func (s *Api) versionHandler(_ context.Context) (*common.VersionResult, error) {
	v := s.version
	return &v, nil
}

func (s *Api) systemInfoHandler(_ context.Context) (*common.SystemInfoResult, error) {
	return &common.SystemInfoResult{
		SystemInfo:  batchlib.GetSystemInfo(),
		Concurrency: s.manager.Concurrency(),
	}, nil
}
