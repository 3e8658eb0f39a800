// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/shenwei356/metaclass"
)

// runConfig is the subset of the core's configuration surface a user may
// set from a YAML file, per spec §6's "core configuration options".
// Flags given on the command line take precedence over these, field by
// field, when both are present (see loadRunConfig in classify.go).
type runConfig struct {
	MacroK     int                `yaml:"macro_k"`
	MesoK      int                `yaml:"meso_k"`
	MicroK     int                `yaml:"micro_k"`
	SketchSize int                `yaml:"sketch_size"`
	Threads    int                `yaml:"threads"`
	QC         metaclass.QCParams `yaml:"qc"`
}

// defaultRunConfig holds spec §6's stated defaults.
func defaultRunConfig() runConfig {
	return runConfig{
		MacroK:     31,
		MesoK:      21,
		SketchSize: 1000,
		QC: metaclass.QCParams{
			MinLength:     50,
			MaxNPercent:   5,
			MinAvgQuality: 20,
			TrimQuality:   10,
		},
	}
}

// loadConfigFile reads a YAML runConfig, starting from defaultRunConfig
// so unset fields keep spec-mandated defaults.
func loadConfigFile(path string) (runConfig, error) {
	cfg := defaultRunConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "metaclass: reading --config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "metaclass: parsing --config file")
	}
	return cfg, nil
}
