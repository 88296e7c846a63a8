package blocks_test

import (
	"bytes"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynblocks/internal/blocks"
)

var _ = Describe("Flatten", func() {
	var quiet blocks.Option

	BeforeEach(func() {
		quiet = blocks.WithLogger(slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelDebug})))
	})

	// source: D(x) ~ -x + in, out ~ x
	source := func(name string) *blocks.Block {
		return blocks.MustBlock(name,
			equations([]string{"x", "out"}, []string{"in"}, "D(x) ~ -x + in", "out ~ x"),
			[]string{"in"}, []string{"out"})
	}
	// sink: D(y) ~ -y + in
	sink := func(name, state string) *blocks.Block {
		return blocks.MustBlock(name,
			equations([]string{state}, []string{"in"}, "D("+state+") ~ -"+state+" + in"),
			[]string{"in"}, nil)
	}

	It("returns blocks unchanged", func() {
		b := source("A")
		flat, err := blocks.Flatten(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(flat).To(BeIdenticalTo(b))
	})

	It("flattens a single-block system to the same equations", func() {
		b := lowpass("F")
		sys, err := blocks.NewSystem("sys", []blocks.Component{b}, nil, quiet)
		Expect(err).NotTo(HaveOccurred())

		flat, err := sys.Flatten()
		Expect(err).NotTo(HaveOccurred())
		Expect(flat.Name()).To(Equal("sys"))
		Expect(strs(flat.Equations())).To(Equal(strs(b.Equations())))
		Expect(flat.Inputs()).To(Equal(b.Inputs()))
		Expect(flat.Outputs()).To(Equal(b.Outputs()))
		Expect(flat.IParams()).To(Equal(b.IParams()))
		Expect(flat.IStates()).To(Equal(b.IStates()))
	})

	It("eliminates a hidden connected output", func() {
		sys, err := blocks.NewSystem("chain",
			[]blocks.Component{source("A"), sink("B", "y")},
			[]blocks.Connection{{In: "B.in", Out: "A.out"}}, quiet)
		Expect(err).NotTo(HaveOccurred())

		flat, err := sys.Flatten()
		Expect(err).NotTo(HaveOccurred())
		Expect(strs(flat.Equations())).To(Equal([]string{
			"D(x) ~ -x + in",
			"D(y) ~ -y + x",
		}))
		Expect(strs(flat.Removed())).To(Equal([]string{"out ~ x"}))
		Expect(symNames(flat.Inputs())).To(Equal([]string{"in"}))
		Expect(flat.Outputs()).To(BeEmpty())
		Expect(symNames(flat.IStates())).To(Equal([]string{"x", "y"}))
	})

	It("keeps exposed connected outputs", func() {
		sys, err := blocks.NewSystem("chain",
			[]blocks.Component{source("A"), sink("B", "y")},
			[]blocks.Connection{{In: "B.in", Out: "A.out"}}, quiet,
			blocks.WithOutputsMap(map[string]string{"A.out": "out"}))
		Expect(err).NotTo(HaveOccurred())

		flat, err := sys.Flatten()
		Expect(err).NotTo(HaveOccurred())
		Expect(strs(flat.Equations())).To(Equal([]string{
			"D(x) ~ -x + in",
			"out ~ x",
			"D(y) ~ -y + out",
		}))
		Expect(flat.Removed()).To(BeEmpty())
		Expect(symNames(flat.Outputs())).To(Equal([]string{"out"}))
		Expect(symNames(flat.States())).To(Equal([]string{"out", "x", "y"}))
	})

	It("eliminates chained outputs through intermediate blocks", func() {
		amp := blocks.MustBlock("G",
			equations([]string{"y"}, []string{"u"}, "y ~ 2*u"),
			[]string{"u"}, []string{"y"})
		sys, err := blocks.NewSystem("chain",
			[]blocks.Component{source("S"), amp, sink("K", "z")},
			[]blocks.Connection{{In: "G.u", Out: "S.out"}, {In: "K.in", Out: "G.y"}}, quiet)
		Expect(err).NotTo(HaveOccurred())

		flat, err := sys.Flatten()
		Expect(err).NotTo(HaveOccurred())
		Expect(strs(flat.Equations())).To(Equal([]string{
			"D(x) ~ -x + in",
			"D(z) ~ -z + 2*x",
		}))
		Expect(strs(flat.Removed())).To(Equal([]string{"out ~ x", "y ~ 2*x"}))
	})

	It("keeps outputs that form an algebraic loop", func() {
		half := blocks.MustBlock("A",
			equations([]string{"y"}, []string{"u"}, "y ~ 0.5*u"),
			[]string{"u"}, []string{"y"})
		offset := blocks.MustBlock("B",
			equations([]string{"w"}, []string{"v"}, "w ~ v + 1"),
			[]string{"v"}, []string{"w"})
		sys, err := blocks.NewSystem("loop",
			[]blocks.Component{half, offset},
			[]blocks.Connection{{In: "B.v", Out: "A.y"}, {In: "A.u", Out: "B.w"}}, quiet)
		Expect(err).NotTo(HaveOccurred())

		flat, err := sys.Flatten()
		Expect(err).NotTo(HaveOccurred())
		Expect(strs(flat.Equations())).To(Equal([]string{"y ~ 0.5*w", "w ~ y + 1"}))
		Expect(flat.Removed()).To(BeEmpty())
		Expect(flat.Inputs()).To(BeEmpty())
	})

	It("lists the same internal states before and after flattening", func() {
		sys, err := blocks.NewSystem("chain",
			[]blocks.Component{source("A"), sink("B", "y")},
			[]blocks.Connection{{In: "B.in", Out: "A.out"}}, quiet)
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.Map(blocks.CategoryIStates)).To(HaveKeyWithValue("A.out", "out"))

		flat, err := sys.Flatten()
		Expect(err).NotTo(HaveOccurred())
		Expect(symNames(sys.IStates())).To(Equal(symNames(flat.IStates())))

		_, err = blocks.Resolve(sys, "out")
		Expect(err).To(MatchError(blocks.ErrNotFound))
		_, err = blocks.Resolve(flat, "out")
		Expect(err).To(MatchError(blocks.ErrNotFound))
		cat, err := blocks.CategoryOf(sys, "y")
		Expect(err).NotTo(HaveOccurred())
		Expect(cat).To(Equal(blocks.CategoryIStates))
	})

	It("does not count eliminated outputs of nested systems as ambiguous", func() {
		var buf bytes.Buffer
		logger := blocks.WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))
		inner, err := blocks.NewSystem("inner",
			[]blocks.Component{source("A"), sink("B", "y")},
			[]blocks.Connection{{In: "B.in", Out: "A.out"}}, logger)
		Expect(err).NotTo(HaveOccurred())
		other := blocks.MustBlock("C",
			equations([]string{"out"}, []string{"v"}, "out ~ 3*v"),
			[]string{"v"}, []string{"out"})

		outer, err := blocks.NewSystem("outer", []blocks.Component{inner, other}, nil, logger)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).NotTo(ContainSubstring("ambiguous"))
		Expect(outer.Map(blocks.CategoryOutputs)).To(Equal(map[string]string{"C.out": "out"}))

		flat, err := outer.Flatten()
		Expect(err).NotTo(HaveOccurred())
		Expect(symNames(flat.Outputs())).To(Equal([]string{"out"}))
		Expect(symNames(flat.IStates())).To(Equal([]string{"x", "y"}))
	})

	It("flattens nested systems", func() {
		inner, err := blocks.NewSystem("inner", []blocks.Component{lowpass("F")}, nil, quiet)
		Expect(err).NotTo(HaveOccurred())
		outer, err := blocks.NewSystem("outer",
			[]blocks.Component{inner, gain("G")},
			[]blocks.Connection{{In: "G.v", Out: "inner.y"}}, quiet)
		Expect(err).NotTo(HaveOccurred())

		flat, err := blocks.Flatten(outer)
		Expect(err).NotTo(HaveOccurred())
		Expect(strs(flat.Equations())).To(ConsistOf("D(x) ~ (u - x)/tau", "w ~ k*x"))
		Expect(strs(flat.Removed())).To(Equal([]string{"y ~ x"}))
		Expect(symNames(flat.States())).To(Equal([]string{"w", "x"}))
		Expect(symNames(flat.Params())).To(Equal([]string{"u", "tau", "k"}))
	})
})
