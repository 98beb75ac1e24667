// Package devtools exposes a running engine for inspection.
//
// The engine is single-threaded, so every access from HTTP handlers and
// websocket clients is funneled through a Loop that owns it:
//
//	loop := devtools.NewLoop(256, logger)
//	registry := devtools.NewRegistry()
//	srv := devtools.NewServer(loop, registry, devtools.Config{Logger: logger})
//
//	go loop.Run(ctx)
//	srv.Start(ctx)
//	loop.Do(ctx, func() error { registry.AddModel(counter.Model); return nil })
//	http.ListenAndServe(":7331", srv.Handler())
//
// Inspected cells produce Change records that are pushed to websocket
// clients on /ws and kept by the session Recorder, which can be archived.
package devtools
