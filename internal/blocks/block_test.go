package blocks_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynblocks/internal/blocks"
	"github.com/san-kum/dynblocks/internal/naming"
	"github.com/san-kum/dynblocks/internal/symbolic"
)

var _ = Describe("NewBlock", func() {
	decay := func() []symbolic.Equation {
		return equations([]string{"x"}, []string{"u", "tau"}, "D(x) ~ -x/tau + u")
	}

	It("derives internal parameters and states", func() {
		b, err := blocks.NewBlock("P", decay(), []string{"u"}, []string{"x"})
		Expect(err).NotTo(HaveOccurred())

		Expect(b.Name()).To(Equal("P"))
		Expect(b.Inputs()).To(Equal([]symbolic.Sym{symbolic.Param("u")}))
		Expect(b.IParams()).To(Equal([]symbolic.Sym{symbolic.Param("tau")}))
		Expect(b.IStates()).To(BeEmpty())
		Expect(b.Outputs()).To(Equal([]symbolic.Sym{symbolic.Var("x")}))
	})

	It("partitions parameters and states", func() {
		eqs := equations([]string{"x", "y", "z"}, []string{"u", "k", "c"},
			"D(x) ~ -k*x + u",
			"D(z) ~ x - z + c",
			"y ~ 2*z",
		)
		b, err := blocks.NewBlock("M", eqs, []string{"u"}, []string{"y"})
		Expect(err).NotTo(HaveOccurred())

		Expect(append(b.Inputs(), b.IParams()...)).To(ConsistOf(symbolic.Parameters(eqs)))
		Expect(append(b.IStates(), b.Outputs()...)).To(ConsistOf(symbolic.Variables(eqs)))
		Expect(symNames(b.IStates())).To(Equal([]string{"x", "z"}))
		Expect(symNames(b.States())).To(Equal([]string{"y", "x", "z"}))
		Expect(symNames(b.Params())).To(Equal([]string{"u", "k", "c"}))
	})

	It("returns copies", func() {
		b := blocks.MustBlock("P", decay(), []string{"u"}, []string{"x"})
		in := b.Inputs()
		in[0] = symbolic.Param("changed")
		Expect(b.Inputs()[0]).To(Equal(symbolic.Param("u")))
	})

	DescribeTable("rejects invalid declarations",
		func(name string, eqs []symbolic.Equation, inputs, outputs []string, kind error) {
			_, err := blocks.NewBlock(name, eqs, inputs, outputs)
			Expect(err).To(MatchError(kind))
		},
		Entry("unknown input", "P", decay(), []string{"w"}, []string{"x"}, blocks.ErrSchema),
		Entry("input is a state", "P", decay(), []string{"x"}, nil, blocks.ErrSchema),
		Entry("output is a parameter", "P", decay(), nil, []string{"tau"}, blocks.ErrSchema),
		Entry("duplicate input", "P", decay(), []string{"u", "u"}, nil, blocks.ErrSchema),
		Entry("qualified name", "P.Q", decay(), nil, nil, blocks.ErrSchema),
		Entry("empty name", "", decay(), nil, nil, blocks.ErrSchema),
		Entry("derivative of a parameter",
			"P", equations([]string{"x"}, []string{"u"}, "D(u) ~ x", "x ~ 1"), nil, nil, blocks.ErrSchema),
		Entry("not square",
			"P", equations([]string{"x", "y"}, nil, "D(x) ~ -x", "y ~ x", "0 ~ x - y"), nil, nil, blocks.ErrStructural),
	)

	It("reports the offending symbol", func() {
		_, err := blocks.NewBlock("P", decay(), []string{"w"}, nil)
		var me *blocks.ModelError
		Expect(err).To(BeAssignableToTypeOf(me))
		Expect(err.Error()).To(ContainSubstring(`"P"`))
		Expect(err.Error()).To(ContainSubstring("w"))
	})
})

var _ = Describe("AnonymousName", func() {
	It("numbers names per prefix and strips separators", func() {
		gen := naming.NewCounter()
		Expect(blocks.AnonymousName(gen, "filter")).To(Equal("filter_1"))
		Expect(blocks.AnonymousName(gen, "filter")).To(Equal("filter_2"))
		Expect(blocks.AnonymousName(gen, "a.b")).To(Equal("a_b_1"))
		Expect(blocks.AnonymousName(gen, "")).To(Equal("component_1"))
	})

	It("produces names NewBlock accepts", func() {
		name := blocks.AnonymousName(naming.UUID{}, "blk")
		_, err := blocks.NewBlock(name,
			equations([]string{"x"}, nil, "D(x) ~ -x"), nil, nil)
		Expect(err).NotTo(HaveOccurred())
	})
})
