package s3

import "testing"

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "uploads/abc/bill.pdf", want: "uploads/abc/bill.pdf"},
		{name: "simple prefix", prefix: "bills", key: "uploads/abc/bill.pdf", want: "bills/uploads/abc/bill.pdf"},
		{name: "trailing slash trimmed", prefix: "bills/", key: "uploads/abc/bill.pdf", want: "bills/uploads/abc/bill.pdf"},
		{name: "leading slashes trimmed", prefix: "/bills/", key: "/uploads/abc/bill.pdf", want: "bills/uploads/abc/bill.pdf"},
		{name: "nested prefix", prefix: "env/staging", key: "uploads/abc/bill.pdf", want: "env/staging/uploads/abc/bill.pdf"},
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
