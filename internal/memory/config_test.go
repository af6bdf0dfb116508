package memory

import (
	"math"
	"runtime/debug"
	"testing"
)

// restoreMemoryLimit puts the runtime limit back after a test changes it.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })
}

func TestConfigureFromEnvNone(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()
	if result.Configured || result.Source != sourceNone || result.GoMemLimit != 0 {
		t.Errorf("ConfigureFromEnv() = %+v", result)
	}
}

func TestConfigureFromEnvGOMEMLIMIT(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "500MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")

	// The variable is only read at startup, so set the runtime value too.
	debug.SetMemoryLimit(500 * 1024 * 1024)

	result := ConfigureFromEnv()
	if !result.Configured || result.Source != sourceGOMEMLIMIT {
		t.Fatalf("ConfigureFromEnv() = %+v", result)
	}
	if result.GoMemLimit != 500*1024*1024 || result.ContainerLimit != 0 {
		t.Errorf("ConfigureFromEnv() = %+v", result)
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     string
		ratio     string
		wantRatio float64
		wantSet   bool
	}{
		{name: "default ratio", limit: "1073741824", wantRatio: DefaultMemoryRatio, wantSet: true},
		{name: "custom ratio", limit: "1073741824", ratio: "0.5", wantRatio: 0.5, wantSet: true},
		{name: "ratio of one", limit: "1073741824", ratio: "1", wantRatio: 1, wantSet: true},
		{name: "ratio out of range", limit: "1073741824", ratio: "1.5", wantRatio: DefaultMemoryRatio, wantSet: true},
		{name: "zero ratio", limit: "1073741824", ratio: "0", wantRatio: DefaultMemoryRatio, wantSet: true},
		{name: "unparsable ratio", limit: "1073741824", ratio: "half", wantRatio: DefaultMemoryRatio, wantSet: true},
		{name: "unparsable limit", limit: "1Gi"},
		{name: "negative limit", limit: "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			result := ConfigureFromEnv()
			if result.Configured != tt.wantSet {
				t.Fatalf("Configured = %v, want %v (%+v)", result.Configured, tt.wantSet, result)
			}
			if !tt.wantSet {
				if result.Source != sourceNone {
					t.Errorf("Source = %q, want %q", result.Source, sourceNone)
				}
				return
			}
			if result.Source != sourceMEMORYLIMIT || result.Ratio != tt.wantRatio {
				t.Errorf("result = %+v, want ratio %v", result, tt.wantRatio)
			}
			want := int64(float64(1073741824) * tt.wantRatio)
			if result.GoMemLimit != want || debug.SetMemoryLimit(-1) != want {
				t.Errorf("GoMemLimit = %d, runtime = %d, want %d", result.GoMemLimit, debug.SetMemoryLimit(-1), want)
			}
		})
	}
}

func TestCurrentGoMemLimit(t *testing.T) {
	restoreMemoryLimit(t)

	debug.SetMemoryLimit(math.MaxInt64)
	if got := currentGoMemLimit(); got != 0 {
		t.Errorf("currentGoMemLimit() with no limit = %d, want 0", got)
	}
	debug.SetMemoryLimit(1 << 30)
	if got := currentGoMemLimit(); got != 1<<30 {
		t.Errorf("currentGoMemLimit() = %d, want %d", got, 1<<30)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
