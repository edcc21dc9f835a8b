package repositories

import "testing"

func TestNewHistoryRepoPageSize(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"configured", 25, 25},
		{"zero falls back", 0, 100},
		{"negative falls back", -1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewHistoryRepo(nil, tt.in).pageSize; got != tt.want {
				t.Errorf("pageSize = %d, want %d", got, tt.want)
			}
		})
	}
}
