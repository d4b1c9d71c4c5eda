// Package dispatch delivers decoded state snapshots to registered listeners.
//
// A Dispatcher holds the listener set for one device session. Notify is
// called from the MQTT delivery goroutine; it does not call listeners
// directly but schedules one job per listener on a Scheduler, normally
// the process-wide Loop. Listeners therefore always run on the loop
// goroutine, one at a time, in the order snapshots arrived.
//
//	loop := dispatch.NewLoop(256)
//	go loop.Run(ctx)
//
//	d := dispatch.New(loop)
//	d.Register(fanEntity)
//	d.Notify(snapshot) // fanEntity.HandleSnapshot runs on the loop
//
// A listener that panics is logged and skipped; the remaining listeners
// still receive the snapshot. A listener unregistered after Notify but
// before its job runs is not called.
package dispatch
