package ledger

import (
	"testing"

	"pocketfin/internal/core"
)

func TestResolveBucket(t *testing.T) {
	mapper := NewMapper([]core.CategoryMapping{
		{Raw: "Supermercado", Standard: "Groceries", Bucket: "Essentials"},
		{Raw: "Restaurante", Standard: "Dining", Bucket: ""},
	})

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"mapped category", "Supermercado", "Essentials"},
		{"mapping with empty bucket", "Restaurante", core.UncategorizedBucket},
		{"unknown category", "Casino", core.UncategorizedBucket},
		{"lookup is case sensitive", "supermercado", core.UncategorizedBucket},
		{"empty raw category", "", core.UncategorizedBucket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapper.ResolveBucket(tt.raw); got != tt.want {
				t.Errorf("ResolveBucket(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveBucketNoMappings(t *testing.T) {
	mapper := NewMapper(nil)
	if got := mapper.ResolveBucket("Supermercado"); got != core.UncategorizedBucket {
		t.Errorf("empty mapper must resolve to %q, got %q", core.UncategorizedBucket, got)
	}
}
