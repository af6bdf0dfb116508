package calibration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestLoadDetectionsErrors(t *testing.T) {
	dir := t.TempDir()

	writeCBOR := func(name string, v any) string {
		t.Helper()
		data, err := cbor.Marshal(v)
		if err != nil {
			t.Fatalf("cbor.Marshal() error = %v", err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		return path
	}

	garbage := filepath.Join(dir, "garbage.cbor")
	if err := os.WriteFile(garbage, []byte("not cbor at all"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "missing", path: filepath.Join(dir, "absent.cbor"), wantErr: "failed to read"},
		{name: "garbage", path: garbage, wantErr: "failed to decode"},
		{
			name:    "wrong version",
			path:    writeCBOR("v9.cbor", DetectionSet{Version: 9}),
			wantErr: "version 9",
		},
		{
			name: "inconsistent",
			path: writeCBOR("bad.cbor", DetectionSet{
				Version: detectionSetVersion,
				Samples: []int{1, 2},
				Points:  [][]Point2{{}},
			}),
			wantErr: "inconsistent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDetections(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadDetections() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestDetectionSetObjectPoints(t *testing.T) {
	set := NewDetectionSet(Board{Cols: 3, Rows: 2}, 100, 100)
	if got := set.ObjectPoints(); len(got) != 0 {
		t.Errorf("ObjectPoints() on empty set = %d sets", len(got))
	}

	set.Add(4, make([]Point2, 6))
	set.Add(9, make([]Point2, 6))
	obj := set.ObjectPoints()
	if len(obj) != 2 || len(obj[0]) != 6 || len(obj[1]) != 6 {
		t.Fatalf("ObjectPoints() shape = %d sets", len(obj))
	}
	if obj[1][5] != (Point3{X: 1, Y: 2}) {
		t.Errorf("last object point = %+v, want {1 2 0}", obj[1][5])
	}
}
