package common

import "github.com/warpdl/batchdl/pkg/batchlib"

type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

type SystemInfoResult struct {
	batchlib.SystemInfo
	Concurrency int `json:"concurrency"`
}

// ItemParams describes one download. Empty ID and FileName are filled in by
// the daemon.
type ItemParams struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url"`
	Dir      string `json:"dir,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

type AddResult struct {
	Item batchlib.Item `json:"item"`
}

type BatchDispatchParams struct {
	ID    string       `json:"id,omitempty"`
	Items []ItemParams `json:"items"`
}

type BatchDispatchResult struct {
	ID    string          `json:"id"`
	Items []batchlib.Item `json:"items"`
}

type BatchParams struct {
	ID string `json:"id"`
}

type BatchListResult struct {
	Batches []batchlib.BatchInfo `json:"batches"`
}

type QueueStatusResult = batchlib.QueueStatus

// EmptyResult is returned by methods that only change state.
type EmptyResult struct{}
