package fix

import (
	"errors"
	"reflect"
	"testing"

	"github.com/cczona/pants/internal/testutil/testlog"
)

func TestDefaultSinglePartitionFlattensAndSorts(t *testing.T) {
	testlog.Start(t)
	tool := testTool("kitchen", CategoryFixer)
	// A single-path field and a glob-resolved field referencing the same
	// path must dedupe to one entry.
	cs := CandidateSet{
		FieldSets: []FieldSet{
			{Address: "//:knife", Source: "knife.utensil"},
			{Address: "//:bowl", Source: "bowl.utensil", Sources: []string{"knife.utensil", "bowl.utensil"}},
		},
	}
	partitions, err := PlanPartitions(tool, cs)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(partitions) != 1 {
		t.Fatalf("expected one partition, got %d", len(partitions))
	}
	want := []string{"bowl.utensil", "knife.utensil"}
	if !reflect.DeepEqual(partitions[0].Files, want) {
		t.Fatalf("partition files: %v", partitions[0].Files)
	}
}

func TestDefaultSinglePartitionSkipYieldsNone(t *testing.T) {
	testlog.Start(t)
	tool := testTool("kitchen", CategoryFixer)
	tool.Skip = true
	cs := CandidateSet{Files: []string{"bowl.utensil"}}
	partitions, err := PlanPartitions(tool, cs)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(partitions) != 0 {
		t.Fatalf("skip should produce zero partitions, got %d", len(partitions))
	}
}

func TestDefaultSinglePartitionEmptyCandidates(t *testing.T) {
	testlog.Start(t)
	partitions, err := PlanPartitions(testTool("empty", CategoryFixer), CandidateSet{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(partitions) != 0 {
		t.Fatalf("empty candidate set should produce zero partitions, got %d", len(partitions))
	}
}

func TestCustomStrategyWholeSetPredicate(t *testing.T) {
	testlog.Start(t)
	tool := testTool("conditional", CategoryFixer)
	tool.Partition = func(cs CandidateSet) ([]Partition, error) {
		needsFixing := false
		for _, fs := range cs.FieldSets {
			if fs.Address == "//:needs_fixing" {
				needsFixing = true
			}
		}
		if !needsFixing {
			return nil, nil
		}
		return []Partition{{Files: cs.AllPaths()}}, nil
	}

	without := CandidateSet{FieldSets: []FieldSet{{Address: "//:clean", Source: "a.f98"}}}
	partitions, err := PlanPartitions(tool, without)
	if err != nil || len(partitions) != 0 {
		t.Fatalf("expected no partitions without trigger: %v %v", partitions, err)
	}

	with := CandidateSet{FieldSets: []FieldSet{
		{Address: "//:clean", Source: "a.f98"},
		{Address: "//:needs_fixing", Source: "b.f98"},
	}}
	partitions, err = PlanPartitions(tool, with)
	if err != nil || len(partitions) != 1 {
		t.Fatalf("expected one partition with trigger: %v %v", partitions, err)
	}
	if !reflect.DeepEqual(partitions[0].Files, []string{"a.f98", "b.f98"}) {
		t.Fatalf("partition files: %v", partitions[0].Files)
	}
}

func TestEmptyPartitionsDropped(t *testing.T) {
	testlog.Start(t)
	tool := testTool("sparse", CategoryFixer)
	tool.Partition = func(cs CandidateSet) ([]Partition, error) {
		return []Partition{
			{Files: nil},
			{Files: []string{"keep.txt", "keep.txt", ""}},
			{Files: []string{}},
		}, nil
	}
	partitions, err := PlanPartitions(tool, CandidateSet{Files: []string{"keep.txt"}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(partitions) != 1 {
		t.Fatalf("empty partitions must be dropped, got %d", len(partitions))
	}
	if !reflect.DeepEqual(partitions[0].Files, []string{"keep.txt"}) {
		t.Fatalf("partition files: %v", partitions[0].Files)
	}
}

func TestStrategyErrorWrapsPlanning(t *testing.T) {
	testlog.Start(t)
	tool := testTool("broken", CategoryFixer)
	tool.Partition = func(cs CandidateSet) ([]Partition, error) {
		return nil, errors.New("strategy blew up")
	}
	_, err := PlanPartitions(tool, CandidateSet{Files: []string{"a.txt"}})
	if !errors.Is(err, ErrPlanning) {
		t.Fatalf("expected ErrPlanning, got %v", err)
	}
}

func TestPartitionMetadataPreserved(t *testing.T) {
	testlog.Start(t)
	tool := testTool("meta", CategoryFixer)
	tool.Partition = func(cs CandidateSet) ([]Partition, error) {
		return []Partition{{Files: cs.Files, Metadata: "profile=strict"}}, nil
	}
	partitions, err := PlanPartitions(tool, CandidateSet{Files: []string{"a.txt"}})
	if err != nil || len(partitions) != 1 {
		t.Fatalf("plan: %v %v", partitions, err)
	}
	if partitions[0].Metadata != "profile=strict" {
		t.Fatalf("metadata lost: %q", partitions[0].Metadata)
	}
}
