package fix

import (
	"fmt"
	"sort"
)

// DefaultSinglePartition is the fallback strategy for tools without
// custom partition logic: every path reachable from the candidate set,
// deduplicated and sorted, in exactly one partition. A tool whose skip
// option is set produces no partitions at all.
func DefaultSinglePartition(tool Tool) PartitionFunc {
	return func(cs CandidateSet) ([]Partition, error) {
		if tool.Skip {
			return nil, nil
		}
		paths := cs.AllPaths()
		if len(paths) == 0 {
			return nil, nil
		}
		return []Partition{{Files: paths}}, nil
	}
}

// PlanPartitions runs the tool's strategy over its candidate set and
// normalizes the result: files are deduplicated with first-occurrence
// order kept, and partitions with no files are dropped entirely.
func PlanPartitions(tool Tool, cs CandidateSet) ([]Partition, error) {
	strategy := tool.Partition
	if strategy == nil {
		strategy = DefaultSinglePartition(tool)
	}

	raw, err := strategy(cs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPlanning, tool.Name, err)
	}

	var out []Partition
	for _, p := range raw {
		files := dedupe(p.Files)
		if len(files) == 0 {
			continue
		}
		out = append(out, Partition{Files: files, Metadata: p.Metadata})
	}
	return out, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func sortedCopy(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}
