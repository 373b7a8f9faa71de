package combat

import (
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/domain"
)

// fixedRNG returns the same draw every time
type fixedRNG float64

func (f fixedRNG) Float64() float64 { return float64(f) }

const (
	always = fixedRNG(0)
	never  = fixedRNG(0.999)
)

func fighter(name string) domain.Combatant {
	c := domain.Combatant{ID: name, Name: name, Health: 100, MaxHealth: 100}
	c.Equip(catalog.Item("g1"))
	c.Equip(catalog.Item("s1"))
	c.Equip(catalog.Item("a1"))
	return c
}

func gun(value float64, ability domain.Ability, chance float64) *domain.Item {
	return &domain.Item{ID: "test-gun", Kind: domain.KindGun, Tier: 1, Value: value,
		MaxCharges: 10, Ability: ability, AbilityChance: chance}
}

func turn(c domain.Combatant, a domain.Action, n int) Turn {
	return Turn{Combatant: c, Action: a, Intensity: n}
}

func hasEvent(out Outcome, substr string) bool {
	for _, e := range out.Events {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestArmorAbsorbsWholeShot(t *testing.T) {
	tests := []struct {
		gunValue  float64
		intensity int
		armor     float64
	}{
		{25, 1, 25},
		{25, 2, 60},
		{45, 3, 150},
		{55, 1, 100},
	}
	for _, tt := range tests {
		a := fighter("a")
		a.Equip(gun(tt.gunValue, domain.AbilityNone, 0))
		b := fighter("b")
		b.Armor, b.MaxArmor = tt.armor, tt.armor

		out := Resolve(turn(a, domain.ActionShoot, tt.intensity), turn(b, domain.ActionIdle, 1), never)
		dmg := tt.gunValue * float64(tt.intensity)
		if out.B.Health != 100 {
			t.Fatalf("gun %v x%d armor %v: health changed to %v", tt.gunValue, tt.intensity, tt.armor, out.B.Health)
		}
		if !approx(out.B.Armor, tt.armor-dmg) {
			t.Fatalf("gun %v x%d armor %v: armor %v, want %v", tt.gunValue, tt.intensity, tt.armor, out.B.Armor, tt.armor-dmg)
		}
	}
}

func TestShieldBlocksShotButAmmoIsSpent(t *testing.T) {
	a := fighter("a")
	b := fighter("b")
	out := Resolve(turn(a, domain.ActionShoot, 3), turn(b, domain.ActionShield, 1), always)

	if out.DamageA != 0 || out.DamageB != 0 {
		t.Fatalf("expected no damage, got %v/%v", out.DamageA, out.DamageB)
	}
	if out.A.Ammo != a.Ammo-3 {
		t.Fatalf("ammo %d, want %d", out.A.Ammo, a.Ammo-3)
	}
	if out.B.ShieldCharges != b.ShieldCharges-1 {
		t.Fatalf("shield charges %d, want %d", out.B.ShieldCharges, b.ShieldCharges-1)
	}
	if out.PenaltyB != 0 {
		t.Fatalf("a successful block should not be penalized, got %v", out.PenaltyB)
	}
	if out.B.Stats.Blocks != 1 {
		t.Fatalf("expected block to be counted, got %d", out.B.Stats.Blocks)
	}
}

func TestCriticalAppliesBeforeArmor(t *testing.T) {
	a := fighter("a")
	a.Equip(gun(30, domain.AbilityCritical, 0.15))
	b := fighter("b")

	out := Resolve(turn(a, domain.ActionShoot, 1), turn(b, domain.ActionIdle, 1), always)
	if !approx(out.B.Health, 55) {
		t.Fatalf("health %v, want 55", out.B.Health)
	}
	if !hasEvent(out, "Critical Hit") {
		t.Fatalf("missing critical event: %v", out.Events)
	}

	b.Armor, b.MaxArmor = 50, 50
	out = Resolve(turn(a, domain.ActionShoot, 1), turn(b, domain.ActionIdle, 1), always)
	if out.B.Health != 100 || !approx(out.B.Armor, 5) {
		t.Fatalf("crit of 45 into 50 armor: health %v armor %v", out.B.Health, out.B.Armor)
	}

	out = Resolve(turn(a, domain.ActionShoot, 1), turn(b, domain.ActionIdle, 1), never)
	if !approx(out.B.Armor, 20) {
		t.Fatalf("non-crit 30 into 50 armor: armor %v", out.B.Armor)
	}
}

func TestPiercingShrinksArmorPool(t *testing.T) {
	a := fighter("a")
	a.Equip(gun(80, domain.AbilityPiercing, 0.5))
	b := fighter("b")
	b.Armor, b.MaxArmor = 100, 100

	out := Resolve(turn(a, domain.ActionShoot, 1), turn(b, domain.ActionIdle, 1), never)
	// effective pool 100*(1-0.5)=50, absorbed min(50,80)=50
	if !approx(out.B.Armor, 50) {
		t.Fatalf("armor %v, want 50", out.B.Armor)
	}
	if !approx(out.B.Health, 70) {
		t.Fatalf("health %v, want 70", out.B.Health)
	}
}

func TestShieldPenalty(t *testing.T) {
	riot := catalog.Item("s2")
	tests := []struct {
		name       string
		armor      float64
		other      domain.Action
		wantArmor  float64
		wantHealth float64
		wantPen    float64
	}{
		{"idle opponent with armor", 30, domain.ActionIdle, 20, 100, 10},
		{"idle opponent no armor", 0, domain.ActionIdle, 0, 90, 10},
		{"both shield", 0, domain.ActionShield, 0, 90, 10},
		{"armor smaller than penalty", 4, domain.ActionIdle, 0, 100, 10},
	}
	for _, tt := range tests {
		a := fighter("a")
		a.Equip(riot)
		a.Armor, a.MaxArmor = tt.armor, tt.armor
		b := fighter("b")

		out := Resolve(turn(a, domain.ActionShield, 1), turn(b, tt.other, 1), never)
		if out.PenaltyA != tt.wantPen {
			t.Fatalf("%s: penalty %v, want %v", tt.name, out.PenaltyA, tt.wantPen)
		}
		if out.A.Armor != tt.wantArmor || out.A.Health != tt.wantHealth {
			t.Fatalf("%s: armor %v health %v, want %v/%v", tt.name, out.A.Armor, out.A.Health, tt.wantArmor, tt.wantHealth)
		}
	}

	// shield value above the base penalty never heals
	a := fighter("a")
	a.Equip(&domain.Item{ID: "wall", Kind: domain.KindShield, Value: 40, MaxCharges: 2})
	out := Resolve(turn(a, domain.ActionShield, 1), turn(fighter("b"), domain.ActionIdle, 1), never)
	if out.PenaltyA != 0 || out.A.Health != 100 {
		t.Fatalf("expected zero penalty, got %v", out.PenaltyA)
	}
}

func TestReflect(t *testing.T) {
	a := fighter("a")
	b := fighter("b")
	b.Equip(catalog.Item("s5"))

	out := Resolve(turn(a, domain.ActionShoot, 2), turn(b, domain.ActionShield, 1), always)
	if !approx(out.DamageA, 25) || !approx(out.A.Health, 75) {
		t.Fatalf("reflected damage %v health %v, want 25/75", out.DamageA, out.A.Health)
	}
	if out.B.Health != 100 {
		t.Fatalf("shielding side took damage: %v", out.B.Health)
	}
	if !hasEvent(out, "Reflected Fire") {
		t.Fatalf("missing reflect event: %v", out.Events)
	}
	if !approx(out.B.Stats.DamageDealt, 25) {
		t.Fatalf("reflect should count as damage dealt, got %v", out.B.Stats.DamageDealt)
	}

	out = Resolve(turn(a, domain.ActionShoot, 2), turn(b, domain.ActionShield, 1), never)
	if out.DamageA != 0 {
		t.Fatalf("untriggered reflect dealt %v", out.DamageA)
	}
}

func TestPassives(t *testing.T) {
	t.Run("dodge", func(t *testing.T) {
		b := fighter("b")
		b.Character = catalog.Character("c1")
		out := Resolve(turn(fighter("a"), domain.ActionShoot, 1), turn(b, domain.ActionIdle, 1), always)
		if out.B.Health != 100 || !hasEvent(out, "Dodged") {
			t.Fatalf("health %v events %v", out.B.Health, out.Events)
		}
	})
	t.Run("mitigation", func(t *testing.T) {
		b := fighter("b")
		b.Character = catalog.Character("c2")
		out := Resolve(turn(fighter("a"), domain.ActionShoot, 1), turn(b, domain.ActionIdle, 1), never)
		if !approx(out.B.Health, 100-25*0.85) {
			t.Fatalf("health %v", out.B.Health)
		}
	})
	t.Run("ammo saver", func(t *testing.T) {
		a := fighter("a")
		a.Character = catalog.Character("c3")
		out := Resolve(turn(a, domain.ActionShoot, 2), turn(fighter("b"), domain.ActionIdle, 1), always)
		if out.A.Ammo != a.Ammo || !hasEvent(out, "Ammo Saved") {
			t.Fatalf("ammo %d events %v", out.A.Ammo, out.Events)
		}
	})
}

func TestRegenShield(t *testing.T) {
	a := fighter("a")
	a.Equip(catalog.Item("s3"))
	out := Resolve(turn(a, domain.ActionShield, 1), turn(fighter("b"), domain.ActionShoot, 1), always)
	if out.A.ShieldCharges != a.MaxShieldCharges || !hasEvent(out, "Shield Regenerated") {
		t.Fatalf("charges %d events %v", out.A.ShieldCharges, out.Events)
	}
}

func TestAutoRepair(t *testing.T) {
	a := fighter("a")
	a.Equip(catalog.Item("a4"))
	out := Resolve(turn(a, domain.ActionIdle, 1), turn(fighter("b"), domain.ActionShoot, 2), always)
	// 50 absorbed, then 10% of 150 restored
	if !approx(out.A.Armor, 115) || !hasEvent(out, "Auto Repair") {
		t.Fatalf("armor %v events %v", out.A.Armor, out.Events)
	}

	out = Resolve(turn(a, domain.ActionIdle, 1), turn(fighter("b"), domain.ActionIdle, 1), always)
	if out.A.Armor != 150 || hasEvent(out, "Auto Repair") {
		t.Fatalf("full armor should not repair: %v %v", out.A.Armor, out.Events)
	}
}

func TestHealthClampsButCumulativeDoesNot(t *testing.T) {
	b := fighter("b")
	b.Health = 10
	out := Resolve(turn(fighter("a"), domain.ActionShoot, 1), turn(b, domain.ActionIdle, 1), never)
	if out.B.Health != 0 {
		t.Fatalf("health %v, want 0", out.B.Health)
	}
	if out.B.CumulativeHealth != -25 {
		t.Fatalf("cumulative %v, want -25", out.B.CumulativeHealth)
	}
	if out.B.Alive() {
		t.Fatal("combatant should be dead")
	}
}

func TestAmmoFloorsAtZero(t *testing.T) {
	a := fighter("a")
	a.Ammo = 1
	out := Resolve(turn(a, domain.ActionShoot, 3), turn(fighter("b"), domain.ActionIdle, 1), never)
	if out.A.Ammo != 0 {
		t.Fatalf("ammo %d, want 0", out.A.Ammo)
	}
}

func TestShotStats(t *testing.T) {
	out := Resolve(turn(fighter("a"), domain.ActionShoot, 2), turn(fighter("b"), domain.ActionIdle, 1), never)
	st := out.A.Stats
	if st.ShotsFired != 2 || st.ShotsHit != 2 || st.DamageDealt != 50 {
		t.Fatalf("unexpected shooter stats %+v", st)
	}
	if out.B.Stats.DamageTaken != 50 {
		t.Fatalf("unexpected defender stats %+v", out.B.Stats)
	}
	if out.A.SuccessfulActions != 1 {
		t.Fatalf("successful actions %d", out.A.SuccessfulActions)
	}
}

func TestResolveIsSymmetric(t *testing.T) {
	a := fighter("a")
	a.Equip(catalog.Item("g4"))
	b := fighter("b")
	b.Equip(catalog.Item("a3"))

	ab := Resolve(turn(a, domain.ActionShoot, 2), turn(b, domain.ActionShoot, 1), never)
	ba := Resolve(turn(b, domain.ActionShoot, 1), turn(a, domain.ActionShoot, 2), never)
	if !reflect.DeepEqual(ab.A, ba.B) || !reflect.DeepEqual(ab.B, ba.A) {
		t.Fatal("swapping sides changed the outcome")
	}
	if ab.DamageA != ba.DamageB || ab.DamageB != ba.DamageA {
		t.Fatal("swapping sides changed damage")
	}
}

func TestResolveIsDeterministicForSeed(t *testing.T) {
	a := fighter("a")
	a.Equip(catalog.Item("g2"))
	a.Character = catalog.Character("c3")
	b := fighter("b")
	b.Equip(catalog.Item("s4"))
	b.Character = catalog.Character("c1")

	for _, action := range []domain.Action{domain.ActionShoot, domain.ActionShield, domain.ActionIdle} {
		x := Resolve(turn(a, domain.ActionShoot, 2), turn(b, action, 1), rand.New(rand.NewPCG(7, 7)))
		y := Resolve(turn(a, domain.ActionShoot, 2), turn(b, action, 1), rand.New(rand.NewPCG(7, 7)))
		if !reflect.DeepEqual(x, y) {
			t.Fatalf("%s: outcomes differ for the same seed", action)
		}
	}
}

func TestInvalidActionIsIdle(t *testing.T) {
	out := Resolve(turn(fighter("a"), domain.Action("DANCE"), 1), turn(fighter("b"), domain.ActionIdle, 1), never)
	if out.A.Ammo != fighter("a").Ammo || out.DamageB != 0 {
		t.Fatal("unknown action should resolve as idle")
	}
}
