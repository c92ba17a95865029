package monitor

import (
	"log/slog"
	"os"
)

// FileOutputStep validates a step by checking the files it is expected to
// produce. The validation attribute bundle names them under "output_files"
// (a []string, or []any of strings when decoded from YAML/JSON); each must
// exist and be non-empty. A bundle without the key is vacuously valid, which
// covers steps whose success is fully captured by their exit code.
type FileOutputStep struct {
	Name   string
	Logger *slog.Logger
}

// IsOutputValid implements PipelineStep.
func (s *FileOutputStep) IsOutputValid(attrs map[string]any) bool {
	raw, ok := attrs["output_files"]
	if !ok {
		return true
	}

	var paths []string
	switch v := raw.(type) {
	case []string:
		paths = v
	case []any:
		for _, item := range v {
			path, ok := item.(string)
			if !ok {
				s.log().Warn("non-string entry in output_files", "step", s.Name, "entry", item)
				return false
			}
			paths = append(paths, path)
		}
	default:
		s.log().Warn("output_files has unexpected type", "step", s.Name)
		return false
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			s.log().Debug("expected output missing", "step", s.Name, "path", path, "error", err)
			return false
		}
		if info.Size() == 0 {
			s.log().Debug("expected output is empty", "step", s.Name, "path", path)
			return false
		}
	}
	return true
}

func (s *FileOutputStep) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ExitCodeStep trusts the backend's exit status entirely; any apparent
// success is accepted. Useful for steps with no inspectable output.
type ExitCodeStep struct{}

// IsOutputValid implements PipelineStep.
func (ExitCodeStep) IsOutputValid(map[string]any) bool { return true }
