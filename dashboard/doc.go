// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package dashboard wires the calculation lifecycle together: builder,
polling engine, materializer and the dependent feature gates.

	d := dashboard.New(client, dashboard.Options{
		Poll:  poller.Options{Interval: cfg.PollInterval},
		Guard: unlocker,
		Saver: gates.FileSaver{Dir: cfg.DownloadDir},
	})
	defer d.Close()

	view, fieldErrs := d.Submit(ctx, raw)

A new Submit or Retry releases the previous result and resets both gates.
When the engine reaches COMPLETED the result is materialized in the
background; Result re-fetches it if that attempt failed.
*/
package dashboard
