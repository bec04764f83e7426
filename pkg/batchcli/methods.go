package batchcli

import (
	"github.com/warpdl/batchdl/common"
	"github.com/warpdl/batchdl/pkg/batchlib"
)

func (c *Client) Version() (*common.VersionResult, error) {
	return call[common.VersionResult](c, common.METHOD_VERSION, nil)
}

func (c *Client) SystemInfo() (*common.SystemInfoResult, error) {
	return call[common.SystemInfoResult](c, common.METHOD_SYSTEM_INFO, nil)
}

// Add appends one download to the global queue. Empty fileName is derived
// from the URL by the daemon.
func (c *Client) Add(url, dir, fileName string) (*batchlib.Item, error) {
	res, err := call[common.AddResult](c, common.METHOD_QUEUE_ADD, &common.ItemParams{
		URL:      url,
		Dir:      dir,
		FileName: fileName,
	})
	if err != nil {
		return nil, err
	}
	return &res.Item, nil
}

func (c *Client) Start() error {
	_, err := call[common.EmptyResult](c, common.METHOD_QUEUE_START, nil)
	return err
}

func (c *Client) Pause() error {
	_, err := call[common.EmptyResult](c, common.METHOD_QUEUE_PAUSE, nil)
	return err
}

func (c *Client) Resume() error {
	_, err := call[common.EmptyResult](c, common.METHOD_QUEUE_RESUME, nil)
	return err
}

func (c *Client) Stop() error {
	_, err := call[common.EmptyResult](c, common.METHOD_QUEUE_STOP, nil)
	return err
}

func (c *Client) Status() (*common.QueueStatusResult, error) {
	return call[common.QueueStatusResult](c, common.METHOD_QUEUE_STATUS, nil)
}

// DispatchBatch submits items as one batch. An empty id lets the daemon
// pick one.
func (c *Client) DispatchBatch(id string, items []common.ItemParams) (*common.BatchDispatchResult, error) {
	return call[common.BatchDispatchResult](c, common.METHOD_BATCH_DISPATCH, &common.BatchDispatchParams{
		ID:    id,
		Items: items,
	})
}

func (c *Client) PauseBatch(id string) error {
	_, err := call[common.EmptyResult](c, common.METHOD_BATCH_PAUSE, &common.BatchParams{ID: id})
	return err
}

func (c *Client) ResumeBatch(id string) error {
	_, err := call[common.EmptyResult](c, common.METHOD_BATCH_RESUME, &common.BatchParams{ID: id})
	return err
}

func (c *Client) StopBatch(id string) error {
	_, err := call[common.EmptyResult](c, common.METHOD_BATCH_STOP, &common.BatchParams{ID: id})
	return err
}

func (c *Client) ListBatches() ([]batchlib.BatchInfo, error) {
	res, err := call[common.BatchListResult](c, common.METHOD_BATCH_LIST, nil)
	if err != nil {
		return nil, err
	}
	return res.Batches, nil
}
