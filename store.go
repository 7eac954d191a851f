package main

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownPurchase    = errors.New("unknown purchase")
	ErrInsufficientStars  = errors.New("not enough stars")
	ErrPurchaseNotAllowed = errors.New("purchase not allowed")
)

// ShopItem is the closed set of things stars can buy
type ShopItem uint8

const (
	ShopHeal ShopItem = iota + 1
	ShopSpeed
	ShopRapidFire
	ShopShield
	ShopMagnet
	ShopRocket
)

// ShopEntry is one catalog line
type ShopEntry struct {
	Item    ShopItem    `json:"-"`
	Code    string      `json:"code"`
	Price   int         `json:"price"`
	PowerUp PowerUpKind `json:"-"`
}

// ShopCatalog lists every purchasable item with its star price
var ShopCatalog = []ShopEntry{
	{Item: ShopHeal, Code: "heal", Price: 2},
	{Item: ShopSpeed, Code: "speed", Price: 3, PowerUp: PowerUpSpeed},
	{Item: ShopRapidFire, Code: "rapid", Price: 3, PowerUp: PowerUpRapidFire},
	{Item: ShopShield, Code: "shield", Price: 4, PowerUp: PowerUpShield},
	{Item: ShopMagnet, Code: "magnet", Price: 2, PowerUp: PowerUpMagnet},
	{Item: ShopRocket, Code: "rocket", Price: 4, PowerUp: PowerUpRocket},
}

var shopByCode map[string]ShopEntry

func init() {
	shopByCode = make(map[string]ShopEntry, len(ShopCatalog))
	for _, e := range ShopCatalog {
		shopByCode[e.Code] = e
	}
}

// ParsePurchase maps a wire code to a catalog entry
func ParsePurchase(code string) (ShopEntry, error) {
	e, ok := shopByCode[code]
	if !ok {
		return ShopEntry{}, fmt.Errorf("%w: %q", ErrUnknownPurchase, code)
	}
	return e, nil
}

// Purchase spends stars on an item. Spending never lowers the tank's tier.
func (w *World) Purchase(t *Tank, e ShopEntry, now time.Time) error {
	if !t.Alive || t.IsBot {
		return ErrPurchaseNotAllowed
	}
	if t.Stars < e.Price {
		return fmt.Errorf("%w: %s costs %d", ErrInsufficientStars, e.Code, e.Price)
	}
	switch e.Item {
	case ShopHeal:
		if t.HP >= t.MaxHP {
			return fmt.Errorf("%w: already at full health", ErrPurchaseNotAllowed)
		}
		t.HP = t.MaxHP
	case ShopSpeed, ShopRapidFire, ShopShield, ShopMagnet, ShopRocket:
		w.GrantPowerUp(t, e.PowerUp, now)
	default:
		return ErrUnknownPurchase
	}
	t.Stars -= e.Price
	return nil
}
