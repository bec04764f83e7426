// Package batchlib implements the batchdl download orchestrator: a resumable
// transfer engine, a registry of independently controllable batches, a single
// dispatch loop bounded by a global permit pool and a manager that owns the
// global download queue.
//
// A typical embedding constructs one Manager for the lifetime of the process:
//
//	m, err := batchlib.NewManager(batchlib.DefaultManagerOpts())
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//	unsubscribe := m.Subscribe(func(p batchlib.Progress) { fmt.Println(p) })
//	defer unsubscribe()
//	batchID, err := m.DispatchBatch("", items)
package batchlib
