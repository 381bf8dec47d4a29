package sim_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fgmsim/internal/dynamo"
	"github.com/san-kum/fgmsim/internal/forces"
	"github.com/san-kum/fgmsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	unitBox = dynamo.Domain{Bounds: r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}, Damping: 0.5}
	centre  = r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	steel   = dynamo.Material{ID: "steel", RestDensity: 7.8, Stiffness: 2000, Gamma: 7}
)

func smallRun() ([]dynamo.Seed, []dynamo.Material, dynamo.Params) {
	params := dynamo.DefaultParams()
	params.ParticleCount = 500
	params.Window = 5
	params.MaxIterations = 50
	seeds := []dynamo.Seed{{Position: centre, Radius: 0.12, Strength: 1}}
	return seeds, []dynamo.Material{steel}, params
}

func meanRadius(ps []dynamo.Particle, material int) float64 {
	sum, n := 0.0, 0
	for _, p := range ps {
		if p.Material != material {
			continue
		}
		sum += r3.Norm(forces.RadialOffset(p.Position, r3.Vec{Z: 1}, centre))
		n++
	}
	return sum / float64(n)
}

var _ = Describe("Controller", func() {
	var c *sim.Controller

	BeforeEach(func() {
		c = sim.New()
	})

	Describe("lifecycle", func() {
		It("starts uninitialized", func() {
			Expect(c.State()).To(Equal(dynamo.Uninitialized))
			Expect(c.Particles()).To(BeNil())
		})

		It("walks from Initialized to Finalized for a seed at rest", func() {
			seeds, mats, params := smallRun()
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())
			Expect(c.State()).To(Equal(dynamo.Initialized))

			t, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Iteration).To(Equal(1))
			Expect(t.State).To(Equal(dynamo.Running))
			Expect(t.ParticleCount).To(Equal(len(c.Particles())))

			conv, err := c.CheckConvergence()
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Converged).To(BeFalse())
			Expect(conv.Reason).To(Equal(sim.ReasonInsufficient))
			Expect(c.State()).To(Equal(dynamo.Running))

			for c.State() == dynamo.Running {
				_, err := c.Step()
				Expect(err).NotTo(HaveOccurred())
				conv, err = c.CheckConvergence()
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(c.State()).To(Equal(dynamo.Converged))
			Expect(conv.Converged).To(BeTrue())
			Expect(conv.Reason).To(Equal(sim.ReasonSettled))
			Expect(c.Iteration()).To(Equal(params.Window))

			res, err := c.Finalize([3]int{10, 10, 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.State()).To(Equal(dynamo.Finalized))
			Expect(res.Converged).To(BeTrue())
			Expect(res.Iterations).To(Equal(params.Window))
			Expect(res.EnergyHistory).To(HaveLen(params.Window))
			Expect(res.Field).NotTo(BeNil())
			Expect(res.Field.At(5, 5, 5).Dominant).To(Equal(0))
		})

		It("reports the iteration cap as a non-converged outcome", func() {
			seeds, mats, params := smallRun()
			params.Window = 40
			params.MaxIterations = 3
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())

			for i := 0; i < 3; i++ {
				_, err := c.Step()
				Expect(err).NotTo(HaveOccurred())
			}
			conv, err := c.CheckConvergence()
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Converged).To(BeFalse())
			Expect(conv.Reason).To(Equal(sim.ReasonIterationCap))
			Expect(c.State()).To(Equal(dynamo.Converged))

			res, err := c.Finalize([3]int{4, 4, 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeFalse())
			Expect(res.Reason).To(Equal(sim.ReasonIterationCap))
		})

		It("rejects operations outside their states without side effects", func() {
			_, err := c.Step()
			Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
			_, err = c.CheckConvergence()
			Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
			_, err = c.Finalize([3]int{2, 2, 2})
			Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
			Expect(c.State()).To(Equal(dynamo.Uninitialized))

			seeds, mats, params := smallRun()
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(MatchError(dynamo.ErrInvalidTransition))
			_, err = c.CheckConvergence()
			Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
			_, err = c.Finalize([3]int{2, 2, 2})
			Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
			Expect(c.State()).To(Equal(dynamo.Initialized))
			Expect(c.Iteration()).To(Equal(0))
		})

		It("refuses to step once finalized", func() {
			seeds, mats, params := smallRun()
			params.MaxIterations = 1
			params.Window = 10
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())
			_, err := c.Step()
			Expect(err).NotTo(HaveOccurred())
			_, err = c.CheckConvergence()
			Expect(err).NotTo(HaveOccurred())
			_, err = c.Finalize([3]int{4, 4, 4})
			Expect(err).NotTo(HaveOccurred())

			before := c.Particles()
			_, err = c.Step()
			var te *dynamo.TransitionError
			Expect(err).To(BeAssignableToTypeOf(te))
			Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
			Expect(c.State()).To(Equal(dynamo.Finalized))
			Expect(c.Particles()).To(Equal(before))
		})

		It("returns to Uninitialized on Reset", func() {
			seeds, mats, params := smallRun()
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())
			_, err := c.Step()
			Expect(err).NotTo(HaveOccurred())

			c.Reset()
			Expect(c.State()).To(Equal(dynamo.Uninitialized))
			Expect(c.Iteration()).To(Equal(0))
			Expect(c.EnergyHistory()).To(BeEmpty())
			Expect(c.Particles()).To(BeNil())
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())
		})

		It("notifies observers after every committed step", func() {
			var seen []dynamo.Telemetry
			c = sim.New(sim.WithObserver(sim.ObserverFunc(func(t dynamo.Telemetry) {
				seen = append(seen, t)
			})))
			seeds, mats, params := smallRun()
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())
			for i := 0; i < 3; i++ {
				_, err := c.Step()
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(seen).To(HaveLen(3))
			for i, t := range seen {
				Expect(t.Iteration).To(Equal(i + 1))
				Expect(t.State).To(Equal(dynamo.Running))
			}
		})
	})

	Describe("configuration", func() {
		DescribeTable("rejects invalid input and stays uninitialized",
			func(field string, mutate func(*[]dynamo.Seed, *dynamo.Domain, *[]dynamo.Material, *dynamo.Params)) {
				seeds, mats, params := smallRun()
				domain := unitBox
				mutate(&seeds, &domain, &mats, &params)

				err := c.Initialize(seeds, domain, mats, params)
				Expect(err).To(MatchError(dynamo.ErrConfiguration))
				var ce *dynamo.ConfigError
				Expect(err).To(BeAssignableToTypeOf(ce))
				Expect(err.(*dynamo.ConfigError).Field).To(Equal(field))
				Expect(c.State()).To(Equal(dynamo.Uninitialized))
			},
			Entry("neighbor grid too large for memory", "h", func(s *[]dynamo.Seed, d *dynamo.Domain, _ *[]dynamo.Material, p *dynamo.Params) {
				d.Bounds = r3.Box{Max: r3.Vec{X: 2000, Y: 2000, Z: 2000}}
				*s = []dynamo.Seed{{Position: r3.Vec{X: 1000, Y: 1000, Z: 1000}, Radius: 0.02, Strength: 1}}
				p.H = 0.01
				p.Dt = 1e-5
				p.ParticleCount = 500
				p.Center = r3.Vec{X: 1000, Y: 1000, Z: 1000}
			}),
			Entry("zero particle count", "particle_count", func(_ *[]dynamo.Seed, _ *dynamo.Domain, _ *[]dynamo.Material, p *dynamo.Params) {
				p.ParticleCount = 0
			}),
			Entry("non-positive h", "h", func(_ *[]dynamo.Seed, _ *dynamo.Domain, _ *[]dynamo.Material, p *dynamo.Params) {
				p.H = 0
			}),
			Entry("unstable dt", "dt", func(_ *[]dynamo.Seed, _ *dynamo.Domain, _ *[]dynamo.Material, p *dynamo.Params) {
				p.Dt = 0.01
			}),
			Entry("damping of one", "damping", func(_ *[]dynamo.Seed, d *dynamo.Domain, _ *[]dynamo.Material, _ *dynamo.Params) {
				d.Damping = 1
			}),
			Entry("degenerate domain", "domain", func(_ *[]dynamo.Seed, d *dynamo.Domain, _ *[]dynamo.Material, _ *dynamo.Params) {
				d.Bounds.Max.Z = 0
			}),
			Entry("no seeds", "seeds", func(s *[]dynamo.Seed, _ *dynamo.Domain, _ *[]dynamo.Material, _ *dynamo.Params) {
				*s = nil
			}),
			Entry("seed material out of range", "seeds", func(s *[]dynamo.Seed, _ *dynamo.Domain, _ *[]dynamo.Material, _ *dynamo.Params) {
				(*s)[0].Material = 3
			}),
			Entry("roughness of one", "seeds", func(s *[]dynamo.Seed, _ *dynamo.Domain, _ *[]dynamo.Material, _ *dynamo.Params) {
				(*s)[0].Roughness = 1
			}),
			Entry("zero stiffness", "materials", func(_ *[]dynamo.Seed, _ *dynamo.Domain, m *[]dynamo.Material, _ *dynamo.Params) {
				(*m)[0].Stiffness = 0
			}),
			Entry("too few particles for h", "particle_count", func(_ *[]dynamo.Seed, _ *dynamo.Domain, _ *[]dynamo.Material, p *dynamo.Params) {
				p.ParticleCount = 5
			}),
		)
	})

	Describe("divergence", func() {
		It("fails the run and keeps the last committed state on NaN", func() {
			poison := false
			c = sim.New(sim.WithExternalField(func(p dynamo.Particle) r3.Vec {
				if poison {
					return r3.Vec{Y: math.NaN()}
				}
				return r3.Vec{}
			}))
			seeds, mats, params := smallRun()
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())
			_, err := c.Step()
			Expect(err).NotTo(HaveOccurred())

			before := c.Particles()
			poison = true
			_, err = c.Step()
			Expect(err).To(MatchError(dynamo.ErrNumericalDivergence))
			var div *dynamo.DivergenceError
			Expect(err).To(BeAssignableToTypeOf(div))
			div = err.(*dynamo.DivergenceError)
			Expect(div.Iteration).To(Equal(2))
			Expect(div.Quantity).To(Equal("velocity"))
			Expect(math.IsNaN(div.Value)).To(BeTrue())

			Expect(c.State()).To(Equal(dynamo.Failed))
			Expect(c.Iteration()).To(Equal(1))
			Expect(c.Particles()).To(Equal(before))

			_, err = c.Step()
			Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
		})

		It("treats runaway speed as divergence", func() {
			c = sim.New(sim.WithExternalField(func(p dynamo.Particle) r3.Vec {
				return r3.Vec{X: 100 * p.Mass}
			}))
			seeds, mats, params := smallRun()
			params.MaxSpeed = 1e-3
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())

			_, err := c.Step()
			var div *dynamo.DivergenceError
			Expect(err).To(BeAssignableToTypeOf(div))
			Expect(err.(*dynamo.DivergenceError).Quantity).To(Equal("speed"))
			Expect(c.State()).To(Equal(dynamo.Failed))
		})
	})

	Describe("physics", func() {
		It("keeps a steel sphere at rest density without gaining energy", func() {
			params := dynamo.DefaultParams()
			params.ParticleCount = 7238
			params.MaxIterations = 1000
			seeds := []dynamo.Seed{{Position: centre, Radius: 0.3, Strength: 1}}
			Expect(c.Initialize(seeds, unitBox, []dynamo.Material{steel}, params)).To(Succeed())

			var last dynamo.Telemetry
			for i := 0; i < 100; i++ {
				t, err := c.Step()
				Expect(err).NotTo(HaveOccurred())
				last = t
			}
			Expect(last.MaxDensityDeviation).To(BeNumerically("<", 0.05))

			energy := c.EnergyHistory()
			Expect(energy).To(HaveLen(100))
			for i := 1; i < len(energy); i++ {
				Expect(energy[i]).To(BeNumerically("<=", energy[i-1]+1e-9))
			}
		})

		It("conserves particles and mass and keeps them inside the domain", func() {
			seeds, mats, params := smallRun()
			params.Omega = 10
			seeds[0].Position = r3.Vec{X: 0.75, Y: 0.5, Z: 0.5}
			seeds[0].Radius = 0.1
			Expect(c.Initialize(seeds, unitBox, mats, params)).To(Succeed())

			initial := c.Particles()
			mass := 0.0
			for _, p := range initial {
				mass += p.Mass
			}

			for i := 0; i < 150; i++ {
				_, err := c.Step()
				Expect(err).NotTo(HaveOccurred())
			}

			ps := c.Particles()
			Expect(ps).To(HaveLen(len(initial)))
			after := 0.0
			for i, p := range ps {
				Expect(unitBox.Bounds.Contains(p.Position)).To(BeTrue(), "particle %d at %v", i, p.Position)
				Expect(p.Mass).To(Equal(initial[i].Mass))
				Expect(p.Density).To(BeNumerically(">", 0))
				after += p.Mass
			}
			Expect(after).To(Equal(mass))
		})

		It("is deterministic for a fixed configuration", func() {
			seeds, mats, params := smallRun()
			params.Jitter = 0.2
			params.RandSeed = 7
			params.Omega = 5

			run := func(workers int) []dynamo.Particle {
				p := params
				p.Workers = workers
				ctl := sim.New()
				Expect(ctl.Initialize(seeds, unitBox, mats, p)).To(Succeed())
				for i := 0; i < 20; i++ {
					_, err := ctl.Step()
					Expect(err).NotTo(HaveOccurred())
				}
				return ctl.Particles()
			}
			Expect(run(1)).To(Equal(run(4)))
		})

		It("moves the denser material further from the rotation axis", func() {
			heavy := dynamo.Material{ID: "heavy", RestDensity: 8, Stiffness: 100, Gamma: 7, Viscosity: 0.05}
			light := dynamo.Material{ID: "light", RestDensity: 1, Stiffness: 100, Gamma: 7, Viscosity: 0.05}
			seeds := []dynamo.Seed{
				{Position: r3.Vec{X: 0.8, Y: 0.5, Z: 0.5}, Radius: 0.1, Material: 0, Strength: 1},
				{Position: r3.Vec{X: 0.2, Y: 0.5, Z: 0.5}, Radius: 0.1, Material: 1, Strength: 1},
			}
			params := dynamo.DefaultParams()
			params.ParticleCount = 540
			params.Omega = 10
			params.MaxIterations = 1000

			Expect(c.Initialize(seeds, unitBox, []dynamo.Material{heavy, light}, params)).To(Succeed())
			ps := c.Particles()
			Expect(math.Abs(meanRadius(ps, 0) - meanRadius(ps, 1))).To(BeNumerically("<", 0.01))

			var heavyR, lightR float64
			for i := 1; i <= 200; i++ {
				_, err := c.Step()
				Expect(err).NotTo(HaveOccurred())
				if i > 100 {
					ps := c.Particles()
					heavyR += meanRadius(ps, 0)
					lightR += meanRadius(ps, 1)
				}
			}
			Expect(heavyR).To(BeNumerically(">", lightR))
		})
	})
})
