package object

import "testing"

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "imports/ab/id_export.json", want: "imports/ab/id_export.json"},
		{key: "imports//ab/./x.txt", want: "imports/ab/x.txt"},
		{key: "/etc/passwd", wantErr: true},
		{key: "../secret", wantErr: true},
		{key: "imports/../../secret", wantErr: true},
		{key: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.key)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("CleanKey(%q) expected error, got %q", tt.key, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CleanKey(%q): %v", tt.key, err)
		}
		if got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
