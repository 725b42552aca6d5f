package game

// tier is one row of an ordered threshold table: Label applies from Min
// points upward, until a higher tier takes over.
type tier struct {
	Min   int
	Label string
}

// tierTable is a threshold table ordered highest-first. lookup scans
// descending and returns the first row whose Min is satisfied, so every
// point-to-label mapping in the game shares one rule instead of drifting
// copies of the same if-chain.
type tierTable []tier

func (t tierTable) lookup(points int) string {
	for _, row := range t {
		if points >= row.Min {
			return row.Label
		}
	}
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1].Label
}

// titles maps season points to the rank title shown in the standings.
var titles = tierTable{
	{Min: 300, Label: "Ilitri Supremo 👑"},
	{Min: 100, Label: "Piloto de F1 🏎️"},
	{Min: 50, Label: "Shurmano de Bronce 🥉"},
	{Min: 10, Label: "Conductor Novel 🚗"},
	{Min: 0, Label: "Dominguero 🛵"},
}

// TitleFor returns the rank title for a point total.
func TitleFor(points int) string {
	return titles.lookup(points)
}
