package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
)

// printReport writes duplicate sets to w, one set per block: the digest,
// then member paths with the anchor first. Sets are ordered by anchor path
// for stable output across runs.
func printReport(w io.Writer, duplicates map[string][]string) {
	if len(duplicates) == 0 {
		fmt.Fprintln(w, "No duplicates found.")
		return
	}

	digests := make([]string, 0, len(duplicates))
	for digest := range duplicates {
		digests = append(digests, digest)
	}
	sort.Slice(digests, func(i, j int) bool {
		return duplicates[digests[i]][0] < duplicates[digests[j]][0]
	})

	var redundantFiles int
	var redundantBytes uint64
	for _, digest := range digests {
		members := duplicates[digest]
		fmt.Fprintf(w, "%s\n", digest)
		for _, path := range members {
			fmt.Fprintf(w, "  %s\n", path)
		}
		fmt.Fprintln(w)

		redundantFiles += len(members) - 1
		// Size of the anchor stands in for every member - equal content
		if info, err := os.Stat(members[0]); err == nil {
			redundantBytes += uint64(info.Size()) * uint64(len(members)-1)
		}
	}

	fmt.Fprintf(w, "Found %d duplicate sets, %d redundant files (%s reclaimable)\n",
		len(digests), redundantFiles, humanize.IBytes(redundantBytes))
}
