package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/marmos91/regionstore/cmd/regionstore/cmdutil"
	"github.com/marmos91/regionstore/internal/bytesize"
	"github.com/marmos91/regionstore/internal/cli/output"
	"github.com/marmos91/regionstore/internal/logger"
	"github.com/marmos91/regionstore/pkg/region"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [file...]",
	Short: "Check region files for corruption",
	Long: `Check region files without modifying them.

The header of each file is replayed to find overlapping runs, runs inside
the header and runs past the end of the file; every other payload is
decoded. With no arguments every region file in the storage directory is
checked. The command fails when any problem is found.

Examples:
  regionstore verify
  regionstore verify /srv/world/region/r.0.0.mca -o json`,
	RunE: runVerify,
}

type verifyResults []*region.Report

func (v verifyResults) Headers() []string {
	return []string{"FILE", "SIZE", "CHUNKS", "USED", "FREE", "PROBLEMS"}
}

func (v verifyResults) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, r := range v {
		rows = append(rows, []string{
			filepath.Base(r.Path),
			bytesize.ByteSize(r.Size).String(),
			strconv.Itoa(r.Present),
			strconv.FormatUint(uint64(r.UsedSectors), 10),
			strconv.FormatUint(uint64(r.FreeSectors), 10),
			strconv.Itoa(len(r.Problems)),
		})
	}
	return rows
}

func runVerify(cmd *cobra.Command, args []string) error {
	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}

	sess, err := cmdutil.Start(cmdutil.Context(cmd), nil)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close(cmdutil.Context(cmd)) }()

	opts, err := sess.Config.Storage.RegionOptions()
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths, err = regionFiles(sess.Config.Storage.Path, opts.Extension)
		if err != nil {
			return err
		}
	}
	if len(paths) == 0 {
		p.Warning("No region files found")
		return nil
	}

	results := make(verifyResults, 0, len(paths))
	bad := 0
	for _, path := range paths {
		report, err := region.Verify(path, opts)
		if err != nil {
			return fmt.Errorf("verify %s: %w", path, err)
		}
		if !report.OK() {
			bad++
			logger.Warn("Region file has problems", "path", path, "problems", len(report.Problems))
		}
		results = append(results, report)
	}

	if err := p.Print(results); err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		for _, r := range results {
			for _, problem := range r.Problems {
				p.Error(fmt.Sprintf("%s: %s", filepath.Base(r.Path), problem))
			}
		}
	}

	if bad > 0 {
		return fmt.Errorf("found problems in %d of %d region files", bad, len(results))
	}
	return nil
}

// regionFiles lists the region files of dir in name order.
func regionFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := region.ParseFileName(e.Name(), ext); ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
