// Package ugoira assembles zipped still frames into one animated PNG.
//
// A run takes the raw archive bytes and a Manifest of (file, delay) pairs
// and walks the frames strictly in manifest order:
//
//	extract -> decode -> AddFrame -> progress
//
// followed by a single Finalize. The first failure ends the run with a
// *StageError naming the stage and frame; no partial artifact is produced.
//
//	d := ugoira.NewDriver(ugoira.EncoderOptions{})
//	art, err := d.Run(ctx, zipBytes, manifest, ugoira.ProgressFunc(func(p ugoira.Progress) {
//		log.Printf("%d/%d", p.Frame, p.Total)
//	}))
package ugoira
