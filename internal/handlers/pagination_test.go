package handlers

import "testing"

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		page, limit         string
		wantPage, wantLimit int64
		wantErr             bool
	}{
		{"", "", 1, defaultPageLimit, false},
		{"3", "10", 3, 10, false},
		{"1", "1000", 1, maxPageLimit, false},
		{"0", "", 0, 0, true},
		{"", "-5", 0, 0, true},
		{"two", "", 0, 0, true},
	}

	for _, tt := range tests {
		page, limit, err := parsePaginationParams(tt.page, tt.limit)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parsePaginationParams(%q, %q) err = %v, wantErr %v", tt.page, tt.limit, err, tt.wantErr)
		}
		if page != tt.wantPage || limit != tt.wantLimit {
			t.Fatalf("parsePaginationParams(%q, %q) = %d, %d; want %d, %d", tt.page, tt.limit, page, limit, tt.wantPage, tt.wantLimit)
		}
	}
}
