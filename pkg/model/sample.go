package model

import (
	"fmt"
	"strings"
)

// Sample represents one physical sample flowing through the pipeline. Data
// for a sample may be spread across many jobs; each job carries at most a
// reference to its sample's ID. Samples cross process boundaries between
// pipeline stages, so they serialize to a single tab-delimited line.
type Sample struct {
	ID               string
	Name             string
	FastqFilePaths   []string
	BamFilePath      string
	Gender           string
	AdapterSequences []string
}

func (s *Sample) String() string {
	return fmt.Sprintf("sample id: %s, sample name: %s, fastq_file_paths: %v, bam_file_path: %s, gender: %s, adapter_sequences: %v",
		s.ID, s.Name, s.FastqFilePaths, s.BamFilePath, s.Gender, s.AdapterSequences)
}

// Serialize renders the sample as a single tab-delimited line. File paths and
// adapter sequences are comma-joined within their fields.
func (s *Sample) Serialize() string {
	return strings.Join([]string{
		s.ID,
		s.Name,
		s.Gender,
		strings.Join(s.FastqFilePaths, ","),
		s.BamFilePath,
		strings.Join(s.AdapterSequences, ","),
	}, "\t")
}

// DeserializeSample re-renders a line produced by Serialize back into a
// Sample. A leading '#' is stripped before unpacking.
func DeserializeSample(data string) (*Sample, error) {
	data = strings.TrimPrefix(strings.TrimRight(data, "\r\n"), "#")
	fields := strings.Split(data, "\t")
	if len(fields) != 6 {
		return nil, fmt.Errorf("malformed sample line: expected 6 fields, got %d", len(fields))
	}
	return &Sample{
		ID:               fields[0],
		Name:             fields[1],
		Gender:           fields[2],
		FastqFilePaths:   splitList(fields[3]),
		BamFilePath:      fields[4],
		AdapterSequences: splitList(fields[5]),
	}, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
