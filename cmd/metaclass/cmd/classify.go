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
	"fmt"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/shenwei356/metaclass"
	"github.com/shenwei356/metaclass/classify"
	"github.com/shenwei356/metaclass/pipeline"
	"github.com/shenwei356/metaclass/report"
	"github.com/shenwei356/metaclass/refstore"
	"github.com/shenwei356/metaclass/strain"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "classify a sample against a reference directory",
	Long: `classify a FASTA/FASTQ sample against a directory of reference genomes,
assigning the deepest taxonomic rank the k-mer similarity supports and,
when the best match is one of several strains sharing a reference
group, estimating each strain's relative abundance.
`,
	Run: func(cmd *cobra.Command, args []string) {
		runClassify(cmd, args)
	},
}

func init() {
	RootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringP("fastq", "i", "", "input FASTA/FASTQ file (required)")
	classifyCmd.Flags().StringP("sample-id", "s", "", "sample identifier (required)")
	classifyCmd.Flags().StringP("references", "r", "", "directory of reference genomes (required)")
	classifyCmd.Flags().StringP("output-dir", "o", ".", "directory to write <sample_id>_results.json to")
	classifyCmd.Flags().StringSlice("taxonomy", nil, "nodes.dmp,names.dmp pair for reference lineage lookup")
	classifyCmd.Flags().String("cache-dir", "", "directory to cache reference sketches in across runs")
	classifyCmd.Flags().String("config", "", "YAML file overriding the core configuration defaults")

	classifyCmd.Flags().Int("macro-k", 0, "coarsest k-mer size (default 31, or --config's value)")
	classifyCmd.Flags().Int("meso-k", 0, "middle k-mer size (default 21, or --config's value)")
	classifyCmd.Flags().Int("micro-k", 0, "finest k-mer size (optional third resolution level)")
	classifyCmd.Flags().Int("sketch-size", 0, "bottom-k sketch size (default 1000, or --config's value)")
	classifyCmd.Flags().Int("min-coverage", 0, "minimum sketched k-mers required to attempt classification")
	classifyCmd.Flags().Int("chunk-size", 2000, "records per worker chunk")

	classifyCmd.Flags().Bool("strain-mixture", false, "estimate strain abundances when the match resolves multiple strains")
	classifyCmd.Flags().Int("strain-iterations", 20000, "Metropolis-Hastings iterations")
	classifyCmd.Flags().Int("strain-burnin", 5000, "iterations discarded before retention begins")
	classifyCmd.Flags().Int("strain-thin", 10, "retain every Nth post-burn-in sample")
	classifyCmd.Flags().Int64("strain-seed", 1, "strain model RNG seed")
}

// loadRunConfig merges --config's YAML defaults with any CLI flags the
// user actually set, CLI taking precedence field by field.
func loadRunConfig(cmd *cobra.Command) runConfig {
	cfg, err := loadConfigFile(getFlagString(cmd, "config"))
	checkError(err)

	if cmd.Flags().Changed("macro-k") {
		cfg.MacroK = getFlagInt(cmd, "macro-k")
	}
	if cmd.Flags().Changed("meso-k") {
		cfg.MesoK = getFlagInt(cmd, "meso-k")
	}
	if cmd.Flags().Changed("micro-k") {
		cfg.MicroK = getFlagInt(cmd, "micro-k")
	}
	if cmd.Flags().Changed("sketch-size") {
		cfg.SketchSize = getFlagInt(cmd, "sketch-size")
	}
	return cfg
}

func ksFromConfig(cfg runConfig) []int {
	ks := []int{cfg.MesoK, cfg.MacroK}
	if cfg.MacroK < cfg.MesoK {
		ks = []int{cfg.MacroK, cfg.MesoK}
	}
	if cfg.MicroK > 0 {
		ks = append(ks, cfg.MicroK)
	}
	return ks
}

func runClassify(cmd *cobra.Command, args []string) {
	fastqPath := getFlagString(cmd, "fastq")
	sampleID := getFlagString(cmd, "sample-id")
	refDir := getFlagString(cmd, "references")
	outDir := getFlagString(cmd, "output-dir")
	if fastqPath == "" || sampleID == "" || refDir == "" {
		checkError(fmt.Errorf("--fastq, --sample-id and --references are required"))
	}

	cfg := loadRunConfig(cmd)
	threads := getFlagInt(cmd, "threads")
	if !cmd.Flags().Changed("threads") && cfg.Threads > 0 {
		threads = cfg.Threads
	}
	if threads <= 0 {
		threads = 1
	}
	verbose := getFlagBool(cmd, "verbose")

	ks := ksFromConfig(cfg)

	pipelineCfg := pipeline.Config{
		SampleID:  sampleID,
		QC:        cfg.QC,
		Ks:        ks,
		Molecule:  metaclass.DNA,
		Sketch:    pipeline.SketchParams{Algorithm: metaclass.BottomK, NumHashes: cfg.SketchSize},
		Workers:   threads,
		ChunkSize: getFlagInt(cmd, "chunk-size"),
		CacheDir:  getFlagString(cmd, "cache-dir"),
	}

	if verbose {
		log.Infof("loading reference signatures from %s", refDir)
	}
	taxonomyPaths := getFlagStringSlice(cmd, "taxonomy")
	store, err := refstore.Load(pipelineCfg, refDir, taxonomyPaths...)
	checkError(err)
	if verbose {
		log.Infof("loaded %d reference signatures", store.Count())
	}

	references := store.GetAll()
	classifier, err := classify.New(references)
	if classifyErrIsFatal(err) {
		writePartialAndExit(outDir, sampleID, pipeline.Summary{}, err)
	}
	checkError(err)
	if minCov := getFlagInt(cmd, "min-coverage"); minCov > 0 {
		classifier, err = classify.New(references, classify.WithMinCoverage(minCov))
		checkError(err)
	}

	if verbose {
		log.Infof("streaming %s", fastqPath)
	}
	source, err := refstore.NewFastxSource(fastqPath)
	checkError(err)

	p, err := pipeline.New(pipelineCfg)
	checkError(err)

	start := time.Now()
	query, summary, err := p.Run(source)
	if err != nil {
		writePartialAndExit(outDir, sampleID, summary, err)
	}
	if verbose {
		log.Infof("processed %s reads (%s bases) in %.2fs",
			humanize.Comma(int64(summary.TotalReads)), humanize.Comma(int64(summary.PassedBases)), time.Since(start).Seconds())
	}

	result, classifyErr := classifier.Classify(query)
	var classifications []*classify.Classification
	if classifyErr != nil {
		log.Warningf("classification failed: %v", classifyErr)
	} else {
		classifications = []*classify.Classification{result}
	}

	var strainResult *strain.Result
	if result != nil && getFlagBool(cmd, "strain-mixture") {
		strainResult = estimateStrainAbundance(cmd, query, result, references, verbose)
	}

	doc := report.NewDocument(sampleID, summary, classifications, strainResult)
	path, err := report.Write(outDir, sampleID, doc)
	checkError(err)
	if verbose {
		log.Infof("wrote %s", path)
	}
	checkError(classifyErr)
}

// classifyErrIsFatal reports whether err from classify.New ends the run
// before the sample is read (the caller then writes an empty document
// through writePartialAndExit and exits non-zero), vs. falling through to
// a metrics-only result per spec §7.
func classifyErrIsFatal(err error) bool {
	return err != nil && errors.Cause(err) == metaclass.ErrNoReferences
}

// writePartialAndExit writes whatever was computed with an empty
// classifications list, then exits non-zero with a single stderr line,
// matching spec §7's partial-failure contract.
func writePartialAndExit(outDir, sampleID string, summary pipeline.Summary, cause error) {
	doc := report.NewDocument(sampleID, summary, nil, nil)
	_, _ = report.Write(outDir, sampleID, doc)
	checkError(cause)
}
