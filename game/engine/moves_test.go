package engine

import (
	"reflect"
	"testing"
)

func TestSegmentMoves(t *testing.T) {
	tests := []struct {
		name   string
		layout []string
		depths []int
		at     Cell
		want   []SegmentMoveRange
	}{
		{
			name:   "flush neighbour cannot be pulled",
			layout: []string{".*", "@A"},
			depths: []int{0},
			at:     Cell{X: 0, Y: 0},
			want:   nil,
		},
		{
			name:   "front face on the ground is unbounded",
			layout: []string{".*", "@A"},
			depths: []int{0},
			at:     Cell{X: 1, Y: 0},
			want:   []SegmentMoveRange{{Segment: 0, Min: 0, Unbounded: true}},
		},
		{
			name:   "protruding side block",
			layout: []string{".*", "@A"},
			depths: []int{1},
			at:     Cell{X: 0, Y: 0},
			want:   []SegmentMoveRange{{Segment: 0, Min: 1, Unbounded: true}},
		},
		{
			name:   "front face above a platform is capped",
			layout: []string{"*.", "A.", "B@"},
			depths: []int{3, 0},
			at:     Cell{X: 0, Y: 1},
			want:   []SegmentMoveRange{{Segment: 1, Min: 0, Max: 2}},
		},
		{
			name:   "front face needs two steps of clearance",
			layout: []string{"*.", "A.", "B@"},
			depths: []int{1, 0},
			at:     Cell{X: 0, Y: 1},
			want:   nil,
		},
		{
			name:   "platform segment is never movable",
			layout: []string{"*..", ".B.", "BB@"},
			depths: []int{2},
			at:     Cell{X: 0, Y: 1},
			want:   nil,
		},
		{
			name:   "other segment beside the platform",
			layout: []string{"*..", ".A.", "BB@"},
			depths: []int{2, 1},
			at:     Cell{X: 0, Y: 1},
			want:   []SegmentMoveRange{{Segment: 1, Min: 1, Unbounded: true}},
		},
		{
			name:   "both sides",
			layout: []string{"..*", "A@B"},
			depths: []int{1, 2},
			at:     Cell{X: 1, Y: 0},
			want: []SegmentMoveRange{
				{Segment: 0, Min: 1, Unbounded: true},
				{Segment: 1, Min: 1, Unbounded: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := createTestBoard(t, tt.layout...)
			cfg, err := NewConfigurationWithDepths(board, tt.depths)
			if err != nil {
				t.Fatalf("NewConfigurationWithDepths failed: %v", err)
			}
			got := SegmentMoves(cfg, tt.at)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SegmentMoves(%s) = %+v, want %+v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSegmentMoveRangeUpper(t *testing.T) {
	bounded := SegmentMoveRange{Min: 0, Max: 2}
	if bounded.Upper(5) != 2 {
		t.Errorf("Expected bounded upper 2, got %d", bounded.Upper(5))
	}
	unbounded := SegmentMoveRange{Min: 1, Unbounded: true}
	if unbounded.Upper(5) != 5 {
		t.Errorf("Expected unbounded upper 5, got %d", unbounded.Upper(5))
	}
}
