package reduction

import (
	"github.com/kbukum/xpdflow/binning"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/geometry"
	"github.com/kbukum/xpdflow/link"
	"github.com/kbukum/xpdflow/pdf"
	"github.com/kbukum/xpdflow/qoi"
	"github.com/kbukum/xpdflow/stream"
)

// Start opens a series. It seeds the dark and background ports with zero
// frames and the background scale with 1, and resets the frame stack.
type Start struct {
	Series string
}

// ImageBinner pairs a corrected frame with the binner bound to its mask.
type ImageBinner = stream.Pair[*frame.Frame, *binning.Binner]

// Input ports.
var (
	StartPort         = link.P[Start]("start")
	RawForeground     = link.P[*frame.Frame]("raw_foreground")
	RawForegroundDark = link.P[*frame.Frame]("raw_foreground_dark")
	RawBackground     = link.P[*frame.Frame]("raw_background")
	RawBackgroundDark = link.P[*frame.Frame]("raw_background_dark")
	BackgroundScale   = link.P[float64]("bg_scale")
	Wavelength        = link.P[float64]("wavelength")
	Calibrant         = link.P[string]("calibrant")
	Detector          = link.P[string]("detector")
	IsCalibration     = link.P[bool]("is_calibration_img")
	GeometryInput     = link.P[geometry.Params]("geo_input")
	ImageCounter      = link.P[int]("img_counter")
	Composition       = link.P[string]("composition")
	Filename          = link.P[string]("filename")
)

// Derived ports.
var (
	DarkCorrectedForeground = link.P[*frame.Frame]("dark_corrected_foreground")
	DarkCorrectedBackground = link.P[*frame.Frame]("dark_corrected_background")
	BackgroundCorrected     = link.P[*frame.Frame]("bg_corrected_img")
	FrameStack              = link.P[[]*frame.Frame]("frame_stack")
	ImageShape              = link.P[frame.Shape]("img_shape")

	Geometry     = link.P[geometry.Geometry]("geometry")
	PartitionOut = link.P[*binning.Partition]("partition")

	Polarization          = link.P[*frame.Frame]("polarization_array")
	PolarizationCorrected = link.P[*frame.Frame]("pol_corrected_img")

	Mask = link.P[*frame.Mask]("mask")

	Binner    = link.P[*binning.Binner]("binner")
	ImgBinner = link.P[ImageBinner]("f_img_binner")
	Q         = link.P[[]float64]("q")
	TwoTheta  = link.P[[]float64]("tth")
	Mean      = link.P[[]float64]("mean")

	Median = link.P[[]float64]("median")
	Std    = link.P[[]float64]("std")
	ZScore = link.P[*frame.Frame]("z_score")

	SQ  = link.P[pdf.Result]("sq")
	FQ  = link.P[pdf.Result]("fq")
	PDF = link.P[pdf.Result]("pdf")

	MeanPeaks = link.P[[]qoi.Peak]("mean_peaks")
	PDFPeaks  = link.P[[]qoi.Peak]("pdf_peaks")

	ArtifactsOut = link.P[Artifacts]("artifacts")
	Fit2DMask    = link.P[*frame.Mask]("fit2d_mask")
)
