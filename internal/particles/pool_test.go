package particles

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/kernels"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	unitDomain = dynamo.Domain{Bounds: r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}, Damping: 0.5}
	centre     = r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	steel      = dynamo.Material{ID: "steel", RestDensity: 7.8, Stiffness: 2000, Gamma: 7}
	polymer    = dynamo.Material{ID: "polymer", RestDensity: 1.2, Stiffness: 2000, Gamma: 7}
)

func testParams(count int) dynamo.Params {
	p := dynamo.DefaultParams()
	p.ParticleCount = count
	return p
}

func TestPlaceSphere(t *testing.T) {
	seeds := []dynamo.Seed{{Position: centre, Radius: 0.2, Strength: 1}}
	pool, err := Place(seeds, unitDomain, []dynamo.Material{steel}, testParams(2000))
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}

	if n := pool.Len(); n < 1700 || n > 2300 {
		t.Errorf("expected about 2000 particles, got %d", n)
	}

	wantMass := steel.RestDensity / kernels.LatticeSum(pool.Spacing(), 0.05)
	for i, p := range pool.Particles() {
		if r3.Norm(r3.Sub(p.Position, centre)) > 0.2+1e-12 {
			t.Fatalf("particle %d outside its seed: %v", i, p.Position)
		}
		if p.Mass != wantMass {
			t.Fatalf("particle %d mass %v, want %v", i, p.Mass, wantMass)
		}
		if p.Velocity != (r3.Vec{}) {
			t.Fatalf("particle %d not at rest", i)
		}
	}

	if got, want := pool.TotalMass(), wantMass*float64(pool.Len()); math.Abs(got-want) > 1e-9*want {
		t.Errorf("TotalMass() = %v, want %v", got, want)
	}
}

func TestPlaceDeterministicJitter(t *testing.T) {
	seeds := []dynamo.Seed{{Position: centre, Radius: 0.15, Strength: 1}}
	params := testParams(800)
	params.Jitter = 0.3
	params.RandSeed = 7

	a, err := Place(seeds, unitDomain, []dynamo.Material{steel}, params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Place(seeds, unitDomain, []dynamo.Material{steel}, params)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Particles(), b.Particles()) {
		t.Error("identical seeds and rand seed produced different placements")
	}

	params.RandSeed = 8
	c, err := Place(seeds, unitDomain, []dynamo.Material{steel}, params)
	if err != nil {
		t.Fatal(err)
	}
	if reflect.DeepEqual(a.Particles(), c.Particles()) {
		t.Error("different rand seeds produced identical jitter")
	}
}

func TestPlaceOverlapStrength(t *testing.T) {
	seeds := []dynamo.Seed{
		{Position: centre, Radius: 0.2, Material: 0, Strength: 1},
		{Position: centre, Radius: 0.2, Material: 1, Strength: 3},
	}
	pool, err := Place(seeds, unitDomain, []dynamo.Material{steel, polymer}, testParams(4000))
	if err != nil {
		t.Fatal(err)
	}
	counts := pool.Counts()
	if counts[0] != 0 || counts[1] != pool.Len() {
		t.Errorf("stronger seed should claim every shared site, got counts %v", counts)
	}
	if pool.MaterialMass(0) <= pool.MaterialMass(1) {
		t.Errorf("denser material should have heavier particles: %v vs %v",
			pool.MaterialMass(0), pool.MaterialMass(1))
	}
}

func TestPlaceTinySeed(t *testing.T) {
	seeds := []dynamo.Seed{
		{Position: centre, Radius: 0.15, Strength: 1},
		{Position: r3.Vec{X: 0.9, Y: 0.9, Z: 0.9}, Radius: 1e-4, Strength: 1},
	}
	pool, err := Place(seeds, unitDomain, []dynamo.Material{steel}, testParams(500))
	if err != nil {
		t.Fatal(err)
	}
	last := pool.Particles()[pool.Len()-1]
	if last.Position != seeds[1].Position {
		t.Errorf("tiny seed particle at %v, want %v", last.Position, seeds[1].Position)
	}
}

func TestPlaceRejects(t *testing.T) {
	seeds := []dynamo.Seed{{Position: centre, Radius: 0.2, Strength: 1}}

	tests := []struct {
		name   string
		seeds  []dynamo.Seed
		params dynamo.Params
	}{
		{"no seeds", nil, testParams(100)},
		{"zero count", seeds, testParams(0)},
		{"spacing above h", seeds, testParams(10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Place(tt.seeds, unitDomain, []dynamo.Material{steel}, tt.params)
			if !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestScratchCommit(t *testing.T) {
	seeds := []dynamo.Seed{{Position: centre, Radius: 0.1, Strength: 1}}
	pool, err := Place(seeds, unitDomain, []dynamo.Material{steel}, testParams(300))
	if err != nil {
		t.Fatal(err)
	}

	before := pool.Snapshot()
	work := pool.Scratch()
	work[0].Position = r3.Vec{}
	if pool.Particles()[0].Position != before[0].Position {
		t.Fatal("scratch write leaked into committed state")
	}

	pool.Commit()
	if pool.Particles()[0].Position != (r3.Vec{}) {
		t.Fatal("commit did not publish scratch state")
	}

	again := pool.Scratch()
	if again[1].Position != pool.Particles()[1].Position {
		t.Fatal("scratch not primed from committed state")
	}
}

func TestPlaceRoughSeed(t *testing.T) {
	smooth := []dynamo.Seed{{Position: centre, Radius: 0.2, Strength: 1}}
	rough := []dynamo.Seed{{Position: centre, Radius: 0.2, Strength: 1, Roughness: 0.5}}
	params := testParams(2000)
	params.RandSeed = 3

	a, err := Place(smooth, unitDomain, []dynamo.Material{steel}, params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Place(rough, unitDomain, []dynamo.Material{steel}, params)
	if err != nil {
		t.Fatal(err)
	}
	c, err := Place(rough, unitDomain, []dynamo.Material{steel}, params)
	if err != nil {
		t.Fatal(err)
	}

	outside := 0
	for i, p := range b.Particles() {
		d := r3.Norm(r3.Sub(p.Position, centre))
		if d > 0.3+1e-12 {
			t.Fatalf("particle %d at %v beyond the roughness bound", i, d)
		}
		if d > 0.2 {
			outside++
		}
	}
	if outside == 0 && b.Len() == a.Len() {
		t.Error("roughness did not change the seed surface")
	}

	if b.Len() != c.Len() {
		t.Fatalf("same seed gave %d and %d particles", b.Len(), c.Len())
	}
	for i := range b.Particles() {
		if b.Particles()[i].Position != c.Particles()[i].Position {
			t.Fatalf("particle %d differs between identical placements", i)
		}
	}
}
