package reduction

import (
	"path/filepath"
	"strings"
)

// Artifacts are the file names written for one input frame.
type Artifacts struct {
	Base      string `json:"base"`
	Fit2DMask string `json:"fit2d_mask"`
	MaskArray string `json:"mask_array"`
	Mean      string `json:"mean"`
	Median    string `json:"median"`
	Std       string `json:"std"`
	ZScore    string `json:"z_score"`
}

// ArtifactNames derives output names from an input path by dropping its
// extension: "run/sample.tif" gives "run/sample.msk", "run/sample_mask.npy",
// "run/sample.chi", "run/sample_median.chi", "run/sample_std.chi" and
// "run/sample_zscore.tif".
func ArtifactNames(path string) Artifacts {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return Artifacts{
		Base:      base,
		Fit2DMask: base + ".msk",
		MaskArray: base + "_mask.npy",
		Mean:      base + ".chi",
		Median:    base + "_median.chi",
		Std:       base + "_std.chi",
		ZScore:    base + "_zscore.tif",
	}
}

// All returns every name in a fixed order.
func (a Artifacts) All() []string {
	return []string{a.Fit2DMask, a.MaskArray, a.Mean, a.Median, a.Std, a.ZScore}
}
