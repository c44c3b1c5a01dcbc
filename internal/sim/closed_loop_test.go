package sim_test

import (
	"context"
	"errors"
	"log/slog"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/integrators"
	"github.com/san-kum/taskctl/internal/metrics"
	"github.com/san-kum/taskctl/internal/models"
	"github.com/san-kum/taskctl/internal/sim"
)

var quiet = slog.New(slog.DiscardHandler)

// scripted returns the torques of its script in order, then its error.
type scripted struct {
	torques [][]float64
	err     error
	calls   int
}

func (s *scripted) Torque(control.Sensors) ([]float64, error) {
	s.calls++
	if s.calls <= len(s.torques) {
		return s.torques[s.calls-1], nil
	}
	return nil, s.err
}

var _ = Describe("Closed loop", func() {
	var (
		arm      *models.Arm
		plant    *models.Plant
		settings control.Settings
		rk4      dynamo.Integrator
	)

	BeforeEach(func() {
		arm = models.NewTwoLinkArm()
		arm.TorqueLimits = []float64{1000, 1000}

		var err error
		plant, err = models.NewPlant(arm, 1)
		Expect(err).NotTo(HaveOccurred())

		start, err := plant.EndEffectorAt(plant.InitialState())
		Expect(err).NotTo(HaveOccurred())
		settings = control.DefaultSettings(arm)
		settings.Target = r3.Add(start, r3.Vec{X: 0.3})

		rk4, err = integrators.New("rk4")
		Expect(err).NotTo(HaveOccurred())
	})

	run := func(ctrl control.TorqueSource, cfg sim.Config, extra ...dynamo.Metric) (*sim.Result, error) {
		s := sim.New(plant, ctrl, rk4, sim.WithLogger(quiet))
		for _, m := range extra {
			s.AddMetric(m)
		}
		return s.Run(context.Background(), plant.InitialState(), cfg)
	}

	Context("tracking a target 0.3 m along x", func() {
		It("converges without overshoot", func() {
			ctrl, err := control.NewController(arm, settings, control.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())

			overshoot := metrics.NewOvershoot(plant.EndEffectorAt, settings.Target)
			tracking := metrics.NewTrackingError(plant.EndEffectorAt, func() r3.Vec { return settings.Target })
			res, err := run(ctrl, sim.Config{Dt: 1e-3, Duration: 2}, overshoot, tracking)
			Expect(err).NotTo(HaveOccurred())

			Expect(res.StepsTaken).To(Equal(2000))
			Expect(res.FinalTaskError()).To(BeNumerically("<", 1e-3))
			Expect(res.Metrics["tracking_error"]).To(BeNumerically("<", 1e-3))
			Expect(res.Metrics["overshoot"]).To(BeNumerically("<", 0.1))
			Expect(res.Saturations).To(BeZero())
			Expect(res.TaskErrors[0]).To(BeNumerically("~", 0.3, 1e-9))
			for i := 1; i < len(res.TaskErrors); i++ {
				Expect(res.TaskErrors[i]).To(BeNumerically("<=", res.TaskErrors[i-1]+1e-6),
					"task error grew at sample %d", i)
			}
		})

		It("records one sample per tick plus the final state", func() {
			ctrl, err := control.NewController(arm, settings, control.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())

			res, err := run(ctrl, sim.Config{Dt: 0.01, Duration: 0.1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Times).To(HaveLen(11))
			Expect(res.States).To(HaveLen(11))
			Expect(res.Torques).To(HaveLen(10))
			Expect(res.TaskErrors).To(HaveLen(10))
			Expect(res.Times[10]).To(BeNumerically("~", 0.1, 1e-12))
			Expect(res.Final()).To(Equal(res.States[10]))
		})

		It("runs every tick through the regularized operator on a planar arm", func() {
			ctrl, err := control.NewController(arm, settings, control.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())

			res, err := run(ctrl, sim.Config{Dt: 0.01, Duration: 0.1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Regularizations).To(Equal(res.StepsTaken))
		})

		It("still approaches the target when the plant is heavier than the model", func() {
			heavy, err := models.NewPlant(arm, 1.05)
			Expect(err).NotTo(HaveOccurred())
			plant = heavy

			ctrl, err := control.NewController(arm, settings, control.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())

			res, err := run(ctrl, sim.Config{Dt: 1e-3, Duration: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.FinalTaskError()).To(BeNumerically("<", 0.1))
			Expect(ctrl.LastReport().Mismatch).To(BeNumerically("<", 1e-9))
		})
	})

	Context("with tracking off", func() {
		It("holds the home pose under gravity compensation", func() {
			settings.TrackTarget = false
			ctrl, err := control.NewController(arm, settings, control.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())

			res, err := run(ctrl, sim.Config{Dt: 1e-3, Duration: 0.5})
			Expect(err).NotTo(HaveOccurred())
			final := res.Final()
			for i, q := range arm.HomeQ {
				Expect(final[i]).To(BeNumerically("~", q, 1e-6))
			}
		})

		It("falls without gravity compensation", func() {
			settings.TrackTarget = false
			settings.CompensateGravity = false
			ctrl, err := control.NewController(arm, settings, control.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())

			res, err := run(ctrl, sim.Config{Dt: 1e-3, Duration: 0.2})
			Expect(err).NotTo(HaveOccurred())
			moved := math.Abs(res.Final()[0] - arm.HomeQ[0])
			Expect(moved).To(BeNumerically(">", 1e-3))
		})
	})

	Context("when the loop fails", func() {
		It("stops on a state the integrator cannot continue from", func() {
			ctrl := &scripted{torques: [][]float64{{1e300, 1e300}}}
			res, err := run(ctrl, sim.Config{Dt: 0.01, Duration: 0.1})

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(0))
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
			Expect(res.StepsTaken).To(BeZero())
			Expect(res.Failures).To(Equal(1))
		})

		It("stops on a singular operator by default", func() {
			ctrl := &scripted{
				torques: [][]float64{{0, 0}},
				err:     dynamo.ErrSingularOperator,
			}
			res, err := run(ctrl, sim.Config{Dt: 0.01, Duration: 0.1})
			Expect(err).To(MatchError(dynamo.ErrSingularOperator))
			Expect(res.StepsTaken).To(Equal(1))
		})

		It("can hold the previous torque through recoverable errors", func() {
			ctrl := &scripted{
				torques: [][]float64{{3, -2}},
				err:     dynamo.ErrSingularOperator,
			}
			res, err := run(ctrl, sim.Config{Dt: 0.01, Duration: 0.1, HoldOnRecoverable: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(Equal(10))
			Expect(res.Failures).To(Equal(9))
			for _, tau := range res.Torques {
				Expect(tau).To(Equal(dynamo.Control{3, -2}))
			}
		})

		It("never holds through fatal errors", func() {
			ctrl := &scripted{
				torques: [][]float64{{0, 0}},
				err:     dynamo.ErrSensorRead,
			}
			_, err := run(ctrl, sim.Config{Dt: 0.01, Duration: 0.1, HoldOnRecoverable: true})
			Expect(err).To(MatchError(dynamo.ErrSensorRead))
		})

		It("returns the context error when cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			s := sim.New(plant, control.NewNone(2), rk4, sim.WithLogger(quiet))
			res, err := s.Run(ctx, plant.InitialState(), sim.Config{Dt: 0.01, Duration: 0.1})
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.StepsTaken).To(BeZero())
		})

		It("rejects a bad configuration or initial state", func() {
			s := sim.New(plant, control.NewNone(2), rk4, sim.WithLogger(quiet))
			_, err := s.Run(context.Background(), plant.InitialState(), sim.Config{Dt: 0, Duration: 1})
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
			_, err = s.Run(context.Background(), dynamo.State{0}, sim.Config{Dt: 0.01, Duration: 1})
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})
	})

	Context("exporting loop statistics", func() {
		It("counts ticks and failures", func() {
			reg := prometheus.NewRegistry()
			col, err := metrics.NewCollector(reg, arm.Name)
			Expect(err).NotTo(HaveOccurred())

			ctrl := &scripted{
				torques: [][]float64{{0, 0}, {0, 0}},
				err:     dynamo.ErrSingularOperator,
			}
			s := sim.New(plant, ctrl, rk4, sim.WithLogger(quiet), sim.WithCollector(col))
			_, err = s.Run(context.Background(), plant.InitialState(), sim.Config{Dt: 0.01, Duration: 0.05, HoldOnRecoverable: true})
			Expect(err).NotTo(HaveOccurred())

			families, err := reg.Gather()
			Expect(err).NotTo(HaveOccurred())
			counts := map[string]float64{}
			for _, f := range families {
				for _, m := range f.GetMetric() {
					if c := m.GetCounter(); c != nil {
						counts[f.GetName()] += c.GetValue()
					}
				}
			}
			Expect(counts).To(HaveKeyWithValue("taskctl_controller_ticks_total", 5.0))
			Expect(counts).To(HaveKeyWithValue("taskctl_controller_failures_total", 3.0))
		})
	})
})
