package tray

import "testing"

func TestParseAlignment(t *testing.T) {
	tests := []struct {
		in      string
		want    Alignment
		wantErr bool
	}{
		{"left", AlignLeft, false},
		{"", AlignLeft, false},
		{"Center", AlignCenter, false},
		{"centre", AlignCenter, false},
		{" RIGHT ", AlignRight, false},
		{"top", AlignLeft, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlignment(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAlignment(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAlignment(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestContainerX(t *testing.T) {
	s := Settings{IconWidth: 16, Spacing: 2, OrigX: 500}
	tests := []struct {
		name   string
		align  Alignment
		mapped int
		width  uint16
		want   int16
	}{
		{"left ignores clients", AlignLeft, 3, 56, 500},
		{"right empty", AlignRight, 0, 0, 500 - 2},
		{"right three", AlignRight, 3, 0, 500 - (3*(16+2) + 2)},
		{"center", AlignCenter, 2, 38, 500 - 38/2 + 16/2},
		{"center zero width", AlignCenter, 0, 0, 500 + 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := s
			s.Align = tt.align
			if got := ContainerX(s, tt.mapped, tt.width); got != tt.want {
				t.Errorf("ContainerX() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestContainerWidth(t *testing.T) {
	s := Settings{IconWidth: 20, Spacing: 4}
	for n, want := range map[int]uint16{0: 4, 1: 28, 5: 124} {
		if got := ContainerWidth(s, n); got != want {
			t.Errorf("ContainerWidth(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestContainerRect(t *testing.T) {
	s := Settings{IconWidth: 16, Spacing: 2, Height: 24, OrigX: 800, OrigY: 10, Align: AlignRight}
	r := ContainerRect(s, 2)
	if r.Width != 38 || r.Height != 24 || r.X != 800-38 || r.Y != 10 {
		t.Errorf("ContainerRect() = %+v, want 38x24 at (762,10)", r)
	}
}

func TestInitialRect(t *testing.T) {
	t.Run("one slot by default", func(t *testing.T) {
		r := InitialRect(Settings{IconWidth: 16, Spacing: 3, Height: 20, OrigX: 7})
		if r.Width != 22 || r.X != 7 || r.Height != 20 {
			t.Errorf("InitialRect() = %+v, want width 22 at x 7", r)
		}
	})
	t.Run("explicit width", func(t *testing.T) {
		r := InitialRect(Settings{Width: 100, IconWidth: 16, Spacing: 3})
		if r.Width != 100 {
			t.Errorf("InitialRect().Width = %d, want 100", r.Width)
		}
	})
}

func TestSlotXAndClientY(t *testing.T) {
	s := Settings{IconWidth: 16, IconHeight: 16, Spacing: 2, Height: 24}
	for k, want := range []int16{2, 20, 38} {
		if got := SlotX(s, k); got != want {
			t.Errorf("SlotX(%d) = %d, want %d", k, got, want)
		}
	}
	if got := ClientY(s); got != 4 {
		t.Errorf("ClientY() = %d, want 4", got)
	}
	s.IconHeight = 30
	if got := ClientY(s); got != 0 {
		t.Errorf("ClientY() with tall icon = %d, want 0", got)
	}
}
