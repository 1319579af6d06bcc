package tokens_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/loom/pkg/tokens"
)

var _ = Describe("Estimator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("returns 0 for empty text", func() {
		e := tokens.NewEstimator(nil)
		Expect(e.Count(ctx, "")).To(Equal(0))
	})

	It("prefers the external tokenizer", func() {
		e := tokens.NewEstimator(func(_ context.Context, _ string) (int, error) {
			return 123, nil
		})
		Expect(e.Count(ctx, "whatever text")).To(Equal(123))
	})

	It("falls back to the heuristic on tokenizer failure", func() {
		e := tokens.NewEstimator(func(_ context.Context, _ string) (int, error) {
			return 0, errors.New("tokenizer down")
		})
		Expect(e.Count(ctx, "abcdefgh")).To(Equal(2))
	})

	It("falls back when the tokenizer returns a negative count", func() {
		e := tokens.NewEstimator(func(_ context.Context, _ string) (int, error) {
			return -1, nil
		})
		Expect(e.Count(ctx, "abcd")).To(Equal(1))
	})

	It("uses the heuristic when no tokenizer is configured", func() {
		e := tokens.NewEstimator(nil)
		Expect(e.Count(ctx, "abcdefghi")).To(Equal(3))
	})
})

var _ = Describe("Estimate", func() {
	It("rounds up at 4 chars per token", func() {
		Expect(tokens.Estimate("")).To(Equal(0))
		Expect(tokens.Estimate("a")).To(Equal(1))
		Expect(tokens.Estimate("abcd")).To(Equal(1))
		Expect(tokens.Estimate("abcde")).To(Equal(2))
	})
})
