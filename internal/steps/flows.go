package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kuitang/storefront-e2e/internal/errs"
	"github.com/kuitang/storefront-e2e/internal/obs"
)

// Scenario is a named sequence of steps.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, s *Suite) error
}

// FlowAll selects every scenario of every flow.
const FlowAll = "all"

// Flows maps a flow name to its scenarios. term parameterizes the search.
func Flows(term string) map[string][]Scenario {
	search := Scenario{
		Name: fmt.Sprintf("search for %s", term),
		Run: func(ctx context.Context, s *Suite) error {
			return sequence(ctx,
				s.OpenHomePage,
				func(ctx context.Context) error { return s.SearchFor(ctx, term) },
				s.ShouldSeeSearchResults,
				func(ctx context.Context) error { return s.SearchResultsShouldContain(ctx, term) },
			)
		},
	}
	addFromSearch := Scenario{
		Name: "add a product to the cart from search",
		Run: func(ctx context.Context, s *Suite) error {
			return sequence(ctx,
				s.OpenHomePage,
				func(ctx context.Context) error { return s.SearchFor(ctx, term) },
				s.ClickFirstProduct,
				s.AddProductToCart,
				s.ShouldHaveItemsInCart,
			)
		},
	}
	updateQty := Scenario{
		Name: "update product quantity",
		Run: func(ctx context.Context, s *Suite) error {
			return sequence(ctx,
				s.EnsureProductInCart,
				s.OpenCart,
				func(ctx context.Context) error { return s.UpdateFirstQuantity(ctx, 2) },
				func(ctx context.Context) error { return s.ShouldSeeItemCount(ctx, 1) },
			)
		},
	}
	remove := Scenario{
		Name: "remove product from cart",
		Run: func(ctx context.Context, s *Suite) error {
			return sequence(ctx,
				s.EnsureProductInCart,
				s.OpenCart,
				s.RemoveProduct,
				s.CartShouldBeEmpty,
			)
		},
	}
	checkout := Scenario{
		Name: "guest checkout",
		Run: func(ctx context.Context, s *Suite) error {
			return sequence(ctx,
				s.EnsureProductInCart,
				s.OpenCart,
				s.ProceedToCheckout,
				func(ctx context.Context) error {
					_, err := s.CompleteCheckout(ctx)
					return err
				},
			)
		},
	}
	return map[string][]Scenario{
		"search":   {search},
		"cart":     {addFromSearch, updateQty, remove},
		"checkout": {checkout},
	}
}

// FlowNames lists the selectable flows, FlowAll included.
func FlowNames() []string {
	names := []string{FlowAll}
	for name := range Flows("") {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

// Select returns the scenarios of flow, in run order for FlowAll.
func Select(flow, term string) ([]Scenario, error) {
	flows := Flows(term)
	if flow == FlowAll {
		var all []Scenario
		for _, name := range []string{"search", "cart", "checkout"} {
			all = append(all, flows[name]...)
		}
		return all, nil
	}
	scenarios, ok := flows[flow]
	if !ok {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown flow %q, expected one of %s", flow, strings.Join(FlowNames(), ", ")))
	}
	return scenarios, nil
}

// Result is the outcome of one scenario.
type Result struct {
	Scenario string
	Err      error
}

// RunScenarios runs each scenario in order with cookie cleanup between
// them. It keeps going after a failure unless ctx ends, and returns the
// first scenario error.
func RunScenarios(ctx context.Context, s *Suite, scenarios []Scenario) ([]Result, error) {
	var results []Result
	var first error
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			if first == nil {
				first = errs.Wrap(errs.Canceled, "run canceled", err)
			}
			break
		}
		sctx := s.BeginScenario(ctx, sc.Name)
		err := sc.Run(sctx, s)
		if cleanupErr := s.AfterScenario(sctx); cleanupErr != nil && err == nil {
			err = cleanupErr
		}
		log := obs.From(sctx).With("pkg", "steps")
		if err != nil {
			log.Error("scenario failed", "error", err)
			if first == nil {
				first = fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
		} else {
			log.Info("scenario passed")
		}
		results = append(results, Result{Scenario: sc.Name, Err: err})
	}
	return results, first
}

func sequence(ctx context.Context, steps ...func(context.Context) error) error {
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}
