package s3

import (
	"strings"
	"testing"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "imports/ab/export.json", want: "imports/ab/export.json"},
		{name: "simple prefix", prefix: "tuning", key: "imports/ab/export.json", want: "tuning/imports/ab/export.json"},
		{name: "prefix trailing slash", prefix: "tuning/", key: "imports/x.txt", want: "tuning/imports/x.txt"},
		{name: "prefix and key slashes", prefix: "/tuning/", key: "/imports/x.txt", want: "tuning/imports/x.txt"},
		{name: "empty key", prefix: "tuning", key: "", want: "tuning"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	c := &countingReader{r: strings.NewReader("abcdef")}
	buf := make([]byte, 4)
	for {
		if _, err := c.Read(buf); err != nil {
			break
		}
	}
	if c.n != 6 {
		t.Fatalf("expected 6 bytes counted, got %d", c.n)
	}
}
