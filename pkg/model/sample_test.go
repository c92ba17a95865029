package model

import (
	"reflect"
	"testing"
)

func TestSample_SerializeDeserialize(t *testing.T) {
	in := &Sample{
		ID:               "1",
		Name:             "liver_rep1",
		FastqFilePaths:   []string{"/data/r1.fastq", "/data/r2.fastq"},
		BamFilePath:      "/data/aligned.bam",
		Gender:           "female",
		AdapterSequences: []string{"AGATCGG", "CTGTCTC"},
	}

	out, err := DeserializeSample("#" + in.Serialize() + "\n")
	if err != nil {
		t.Fatalf("DeserializeSample: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", out, in)
	}
}

func TestDeserializeSample_Malformed(t *testing.T) {
	if _, err := DeserializeSample("only\tthree\tfields"); err == nil {
		t.Error("expected error for malformed line, got nil")
	}
}
