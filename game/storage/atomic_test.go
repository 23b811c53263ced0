package storage

import (
	"testing"

	"github.com/spf13/afero"
)

func TestWriteFileAtomic(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		data    []byte
		setupFS func(fs afero.Fs) error
	}{
		{
			name:    "new file in new directory",
			path:    "sessions/ab12.json",
			data:    []byte(`{"id":"ab12"}`),
			setupFS: func(fs afero.Fs) error { return nil },
		},
		{
			name: "overwrite existing file",
			path: "leaderboard/level1_leaderboard.json",
			data: []byte("[]"),
			setupFS: func(fs afero.Fs) error {
				return afero.WriteFile(fs, "leaderboard/level1_leaderboard.json", []byte("old"), 0o644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if err := tt.setupFS(fs); err != nil {
				t.Fatalf("setup failed: %v", err)
			}

			if err := WriteFileAtomic(fs, tt.path, tt.data); err != nil {
				t.Fatalf("WriteFileAtomic failed: %v", err)
			}

			content, err := afero.ReadFile(fs, tt.path)
			if err != nil {
				t.Fatalf("Failed to read file: %v", err)
			}
			if string(content) != string(tt.data) {
				t.Errorf("content mismatch: got %q, want %q", content, tt.data)
			}
		})
	}
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := WriteFileAtomic(fs, "data/file.json", []byte("{}")); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	entries, err := afero.ReadDir(fs, "data")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "file.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only file.json, got %v", names)
	}
}

func TestWriteFileAtomicReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	if err := WriteFileAtomic(fs, "x/y.json", []byte("{}")); err == nil {
		t.Error("expected error on read-only filesystem")
	}
}

func TestJSONHelpers(t *testing.T) {
	type record struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	fs := afero.NewMemMapFs()
	if err := WriteJSON(fs, "r.json", record{Name: "ada", Score: 850}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var got record
	if err := ReadJSON(fs, "r.json", &got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.Name != "ada" || got.Score != 850 {
		t.Errorf("unexpected record %+v", got)
	}

	afero.WriteFile(fs, "bad.json", []byte("{"), 0o644)
	if err := ReadJSON(fs, "bad.json", &got); err == nil {
		t.Error("expected parse error")
	}
	if err := ReadJSON(fs, "missing.json", &got); err == nil {
		t.Error("expected not-exist error")
	}
}
