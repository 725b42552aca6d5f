package game

import "testing"

func TestTitleForBoundaries(t *testing.T) {
	tests := []struct {
		points int
		want   string
	}{
		{0, "Dominguero 🛵"},
		{9, "Dominguero 🛵"},
		{10, "Conductor Novel 🚗"},
		{49, "Conductor Novel 🚗"},
		{50, "Shurmano de Bronce 🥉"},
		{99, "Shurmano de Bronce 🥉"},
		{100, "Piloto de F1 🏎️"},
		{299, "Piloto de F1 🏎️"},
		{300, "Ilitri Supremo 👑"},
		{1000, "Ilitri Supremo 👑"},
	}

	for _, tt := range tests {
		if got := TitleFor(tt.points); got != tt.want {
			t.Errorf("TitleFor(%d) = %q, want %q", tt.points, got, tt.want)
		}
	}
}
