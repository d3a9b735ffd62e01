package geometry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/kbukum/xpdflow/errors"
)

// PoniPattern matches calibration files.
const PoniPattern = "*.poni"

// poniKeys maps lower-cased .poni keys onto Params fields.
var poniKeys = map[string]string{
	"distance":   "dist",
	"poni1":      "poni1",
	"poni2":      "poni2",
	"rot1":       "rot1",
	"rot2":       "rot2",
	"rot3":       "rot3",
	"pixelsize1": "pixel1",
	"pixelsize2": "pixel2",
	"wavelength": "wavelength",
	"detector":   "detector",
}

// FindCalibration returns the single .poni file in dir. Zero or several
// candidates is a configuration error.
func FindCalibration(fs afero.Fs, dir string) (string, error) {
	matches, err := afero.Glob(fs, filepath.Join(dir, PoniPattern))
	if err != nil {
		return "", errors.Configuration(fmt.Sprintf("searching %s for calibration: %v", dir, err))
	}
	switch len(matches) {
	case 0:
		return "", errors.Configuration(fmt.Sprintf("no calibration file (%s) in %s", PoniPattern, dir))
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", errors.Configuration(fmt.Sprintf("ambiguous calibration in %s: %s", dir, strings.Join(matches, ", ")))
	}
}

// ReadPoni parses a pyFAI .poni file (version 1 or 2).
func ReadPoni(fs afero.Fs, path string) (Params, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Params{}, errors.Configuration(fmt.Sprintf("reading %s: %v", path, err))
	}

	raw := map[string]any{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "detector_config" {
			var cfg map[string]any
			if err := json.Unmarshal([]byte(value), &cfg); err != nil {
				return Params{}, errors.Configuration(fmt.Sprintf("%s: detector_config: %v", path, err))
			}
			for _, k := range []string{"pixel1", "pixel2"} {
				if v, ok := cfg[k]; ok {
					raw[k] = v
				}
			}
			continue
		}
		if field, ok := poniKeys[key]; ok {
			raw[field] = value
		}
	}
	if err := sc.Err(); err != nil {
		return Params{}, errors.Configuration(fmt.Sprintf("reading %s: %v", path, err))
	}

	p, err := ParamsFromMap(raw)
	if err != nil {
		return Params{}, errors.Configuration(fmt.Sprintf("%s: %v", path, err))
	}
	return p, nil
}

// LoadCalibration finds the single .poni file in dir and parses it.
func LoadCalibration(fs afero.Fs, dir string) (Params, error) {
	path, err := FindCalibration(fs, dir)
	if err != nil {
		return Params{}, err
	}
	return ReadPoni(fs, path)
}
