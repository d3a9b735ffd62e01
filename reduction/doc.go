// Package reduction wires area-detector frames into reduced profiles.
//
// The graph is built from chunks, each declaring the ports it reads and
// writes:
//
//	sources              start, raw frames, metadata, geometry input
//	image_process        dark and background subtraction, frame stack, image shape
//	calibration          geometry from a calibrant frame or stored parameters, partition
//	scattering           polarization correction
//	gen_mask             masking gate (auto, first, none)
//	integration          mask-bound binner, q, tth, mean I(Q)
//	extras               median, std, z-score image
//	pdf                  S(Q), F(Q), G(r) through a pdf.Transformer
//	qoi                  peak positions on I(Q) and G(r)
//	artifacts            output file names per frame
//
// Which chunks make up a pipeline is read from a YAML definition; "full"
// and "raw" ship embedded. A Pipeline is a component.Component:
//
//	rt := settings.Default()
//	p, err := reduction.New(cfg, rt, reduction.WithLoader(geometry.FlatLoader))
//	err = p.BeginSeries(ctx, reduction.Series{Geometry: &params, Wavelength: 1.8e-11})
//	err = p.Feed(ctx, reduction.Exposure{Counter: 1, Image: img, Filename: "sample_0001.tif"})
//	mean, _ := link.MustLookup(p.Namespace(), reduction.Mean).Last()
package reduction
