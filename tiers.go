package main

// Tier is a star bracket that sizes a tank
type Tier struct {
	MinStars int
	Radius   float64
	MaxHP    int
}

// Tiers is sorted by MinStars ascending
var Tiers = []Tier{
	{0, 0.40, 100},
	{3, 0.45, 120},
	{6, 0.50, 140},
	{10, 0.55, 160},
	{15, 0.60, 185},
	{25, 0.70, 215},
	{40, 0.80, 250},
}

// TierFor returns the highest tier reached by a star high-water mark
func TierFor(peak int) Tier {
	t := Tiers[0]
	for _, tier := range Tiers {
		if peak >= tier.MinStars {
			t = tier
		}
	}
	return t
}

// applyTier resizes a tank after its peak star count rose and heals the
// gained max HP. Radius and MaxHP never shrink.
func applyTier(t *Tank) {
	tier := TierFor(t.PeakStars)
	if tier.Radius > t.Radius {
		t.Radius = tier.Radius
	}
	if t.CarryingFlag != TeamNone {
		// carrier cap stays until the flag leaves
		return
	}
	if tier.MaxHP > t.MaxHP {
		t.HP += tier.MaxHP - t.MaxHP
		t.MaxHP = tier.MaxHP
	}
	if t.HP > t.MaxHP {
		t.HP = t.MaxHP
	}
}

// addStars credits stars and raises the high-water mark
func addStars(t *Tank, n int) {
	if n <= 0 {
		return
	}
	t.Stars += n
	if t.Stars > t.PeakStars {
		t.PeakStars = t.Stars
		applyTier(t)
	}
}
