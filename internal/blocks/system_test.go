package blocks_test

import (
	"bytes"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynblocks/internal/blocks"
	"github.com/san-kum/dynblocks/internal/symbolic"
)

// lowpass: D(x) ~ (u - x)/tau, y ~ x
func lowpass(name string) *blocks.Block {
	return blocks.MustBlock(name,
		equations([]string{"x", "y"}, []string{"u", "tau"},
			"D(x) ~ (u - x)/tau",
			"y ~ x",
		),
		[]string{"u"}, []string{"y"})
}

// gain: w ~ k*v
func gain(name string) *blocks.Block {
	return blocks.MustBlock(name,
		equations([]string{"w"}, []string{"v", "k"}, "w ~ k*v"),
		[]string{"v"}, []string{"w"})
}

var _ = Describe("NewSystem", func() {
	var quiet blocks.Option

	BeforeEach(func() {
		quiet = blocks.WithLogger(slog.New(slog.NewTextHandler(GinkgoWriter, nil)))
	})

	It("rejects duplicate subsystem names before looking at connections", func() {
		_, err := blocks.NewSystem("sys",
			[]blocks.Component{lowpass("filter"), lowpass("filter")},
			[]blocks.Connection{{In: "nowhere.u", Out: "nowhere.y"}}, quiet)
		Expect(err).To(MatchError(blocks.ErrNamespaceCollision))
	})

	It("promotes unambiguous names and hides connected outputs", func() {
		sys, err := blocks.NewSystem("sys",
			[]blocks.Component{lowpass("F"), gain("G")},
			[]blocks.Connection{{In: "G.v", Out: "F.y"}}, quiet)
		Expect(err).NotTo(HaveOccurred())

		Expect(sys.Map(blocks.CategoryInputs)).To(Equal(map[string]string{"F.u": "u"}))
		Expect(sys.Map(blocks.CategoryIParams)).To(Equal(map[string]string{"F.tau": "tau", "G.k": "k"}))
		Expect(sys.Map(blocks.CategoryIStates)).To(Equal(map[string]string{"F.x": "x", "F.y": "y"}))
		Expect(sys.Map(blocks.CategoryOutputs)).To(Equal(map[string]string{"G.w": "w"}))

		Expect(sys.Inputs()).To(Equal([]symbolic.Sym{symbolic.Param("u")}))
		Expect(sys.Outputs()).To(Equal([]symbolic.Sym{symbolic.Var("w")}))
	})

	It("keeps ambiguous names qualified and warns", func() {
		var buf bytes.Buffer
		sys, err := blocks.NewSystem("sys",
			[]blocks.Component{lowpass("A"), lowpass("B")}, nil,
			blocks.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		Expect(err).NotTo(HaveOccurred())

		Expect(sys.Map(blocks.CategoryInputs)).To(Equal(map[string]string{"A.u": "A.u", "B.u": "B.u"}))
		Expect(sys.Map(blocks.CategoryIParams)).To(Equal(map[string]string{"A.tau": "A.tau", "B.tau": "B.tau"}))
		Expect(buf.String()).To(ContainSubstring("ambiguous names kept qualified"))
		Expect(buf.String()).To(ContainSubstring("A.tau"))
	})

	It("is deterministic", func() {
		build := func() *blocks.System {
			sys, err := blocks.NewSystem("sys",
				[]blocks.Component{lowpass("A"), lowpass("B"), gain("G")},
				[]blocks.Connection{{In: "B.u", Out: "A.y"}, {In: "G.v", Out: "B.y"}}, quiet)
			Expect(err).NotTo(HaveOccurred())
			return sys
		}
		first, second := build(), build()
		for cat := blocks.CategoryInputs; cat <= blocks.CategoryOutputs; cat++ {
			Expect(first.Promotions(cat)).To(Equal(second.Promotions(cat)))
		}
	})

	It("keeps promoted names unique within and across categories", func() {
		sys, err := blocks.NewSystem("sys",
			[]blocks.Component{lowpass("A"), lowpass("B"), gain("G")},
			[]blocks.Connection{{In: "B.u", Out: "A.y"}}, quiet)
		Expect(err).NotTo(HaveOccurred())

		seen := map[string]bool{}
		for cat := blocks.CategoryInputs; cat <= blocks.CategoryOutputs; cat++ {
			for _, p := range sys.Promotions(cat) {
				Expect(seen).NotTo(HaveKey(p.To))
				seen[p.To] = true
			}
		}
	})

	Context("with user maps", func() {
		comps := func() []blocks.Component {
			return []blocks.Component{lowpass("A"), lowpass("B")}
		}

		It("merges user and generated promotions", func() {
			sys, err := blocks.NewSystem("sys", comps(), nil, quiet,
				blocks.WithIParamsMap(map[string]string{"A.tau": "tau_a", "B.tau": "tau_b"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(sys.Map(blocks.CategoryIParams)).To(Equal(map[string]string{"A.tau": "tau_a", "B.tau": "tau_b"}))
			Expect(sys.Map(blocks.CategoryInputs)).To(HaveKeyWithValue("A.u", "A.u"))
		})

		It("rejects keys outside the candidate set", func() {
			_, err := blocks.NewSystem("sys", comps(), nil, quiet,
				blocks.WithIParamsMap(map[string]string{"A.nope": "p"}))
			Expect(err).To(MatchError(blocks.ErrInvalidMap))
		})

		It("rejects connected inputs", func() {
			_, err := blocks.NewSystem("sys", comps(),
				[]blocks.Connection{{In: "B.u", Out: "A.y"}}, quiet,
				blocks.WithInputsMap(map[string]string{"B.u": "ub"}))
			Expect(err).To(MatchError(blocks.ErrInvalidMap))
		})

		It("rejects duplicate promoted names", func() {
			_, err := blocks.NewSystem("sys", comps(), nil, quiet,
				blocks.WithIParamsMap(map[string]string{"A.tau": "p", "B.tau": "p"}))
			Expect(err).To(MatchError(blocks.ErrInvalidMap))
		})

		It("detects user names colliding with generated ones", func() {
			_, err := blocks.NewSystem("sys",
				[]blocks.Component{lowpass("F"), gain("G")}, nil, quiet,
				blocks.WithIParamsMap(map[string]string{"F.tau": "k"}))
			Expect(err).To(MatchError(blocks.ErrNamespaceCollision))
		})

		It("detects collisions across categories", func() {
			_, err := blocks.NewSystem("sys",
				[]blocks.Component{lowpass("F"), gain("G")}, nil, quiet,
				blocks.WithIParamsMap(map[string]string{"G.k": "u"}))
			Expect(err).To(MatchError(blocks.ErrNamespaceCollision))
		})

		It("exposes connected outputs listed in the outputs map", func() {
			sys, err := blocks.NewSystem("sys",
				[]blocks.Component{lowpass("F"), gain("G")},
				[]blocks.Connection{{In: "G.v", Out: "F.y"}}, quiet,
				blocks.WithOutputsMap(map[string]string{"F.y": "filtered"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(sys.Map(blocks.CategoryOutputs)).To(Equal(map[string]string{"F.y": "filtered", "G.w": "w"}))
			Expect(sys.Map(blocks.CategoryIStates)).NotTo(HaveKey("F.y"))
		})
	})

	DescribeTable("rejects malformed connections",
		func(conns []blocks.Connection) {
			_, err := blocks.NewSystem("sys", []blocks.Component{lowpass("F"), gain("G")}, conns, quiet)
			Expect(err).To(MatchError(blocks.ErrUnresolvedConnection))
		},
		Entry("unknown input", []blocks.Connection{{In: "G.nope", Out: "F.y"}}),
		Entry("unknown output", []blocks.Connection{{In: "G.v", Out: "F.nope"}}),
		Entry("output used as input", []blocks.Connection{{In: "G.w", Out: "F.y"}}),
		Entry("internal state as output", []blocks.Connection{{In: "G.v", Out: "F.x"}}),
		Entry("input connected twice", []blocks.Connection{{In: "G.v", Out: "F.y"}, {In: "G.v", Out: "G.w"}}),
	)

	It("resolves promoted names", func() {
		sys, err := blocks.NewSystem("sys",
			[]blocks.Component{lowpass("F"), gain("G")},
			[]blocks.Connection{{In: "G.v", Out: "F.y"}}, quiet)
		Expect(err).NotTo(HaveOccurred())

		s, err := blocks.Resolve(sys, "tau")
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(symbolic.Param("tau")))

		cat, err := blocks.CategoryOf(sys, "w")
		Expect(err).NotTo(HaveOccurred())
		Expect(cat).To(Equal(blocks.CategoryOutputs))

		_, err = blocks.Resolve(sys, "v")
		Expect(err).To(MatchError(blocks.ErrNotFound))
	})
})
