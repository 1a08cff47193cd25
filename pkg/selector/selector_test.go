package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/formpilot/formpilot/pkg/dom/memdom"
)

func newTestEngine(t *testing.T, src string) (*Engine, *memdom.Page) {
	t.Helper()
	page := memdom.MustParse(src)
	return NewEngine(page, zaptest.NewLogger(t)), page
}

func TestResolvePrefersEarlierQueries(t *testing.T) {
	e, _ := newTestEngine(t, `
		<button data-test="next">Continue</button>
		<button aria-label="Continue to next step">Continue</button>`)

	n, err := e.Resolve(context.Background(), Strategy{
		Name: "next",
		Queries: []string{
			"button[data-test='next']",
			"button[aria-label='Continue to next step']",
		},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "next", n.Attr("data-test"))
}

func TestResolveFallsThroughToLaterQueries(t *testing.T) {
	e, _ := newTestEngine(t, `<button aria-label="Continue to next step">Continue</button>`)

	n, err := e.Resolve(context.Background(), Strategy{
		Name: "next",
		Queries: []string{
			"button[data-test='next']",
			"button[aria-label='Continue to next step']",
		},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "Continue to next step", n.Attr("aria-label"))
}

func TestResolveSkipsHiddenMatches(t *testing.T) {
	e, _ := newTestEngine(t, `
		<button data-test="next" style="display:none">Hidden</button>
		<button data-test="next">Shown</button>`)

	n, err := e.Resolve(context.Background(), Strategy{
		Name:    "next",
		Queries: []string{"button[data-test='next']"},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, n)
	text, err := n.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Shown", text)
}

func TestResolveTextFallback(t *testing.T) {
	e, _ := newTestEngine(t, `<button class="primary">Next step</button>`)

	n, err := e.Resolve(context.Background(), Strategy{
		Name:    "next",
		Queries: []string{"button[data-test='next']"},
		Text:    "next",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "primary", n.Attr("class"))
}

func TestResolveInvalidExpressionIsSkipped(t *testing.T) {
	e, _ := newTestEngine(t, `<button data-test="next">Next</button>`)

	n, err := e.Resolve(context.Background(), Strategy{
		Name: "next",
		Queries: []string{
			"button[data-test='next'", // malformed, must not abort the lookup
			"button[data-test='next']",
		},
	}, nil)
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestResolveMissIsNotAnError(t *testing.T) {
	e, _ := newTestEngine(t, `<div></div>`)

	n, err := e.Resolve(context.Background(), Strategy{
		Name:    "next",
		Queries: []string{"button[data-test='next']"},
		Text:    "next",
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestResolveAllDeduplicates(t *testing.T) {
	e, _ := newTestEngine(t, `
		<input data-test="field" class="field" name="a">
		<input class="field" name="b">`)

	nodes, err := e.ResolveAll(context.Background(), Strategy{
		Name: "fields",
		Queries: []string{
			"input[data-test='field']",
			"input.field",
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2, "overlapping queries must not duplicate nodes")
	assert.Equal(t, "a", nodes[0].Attr("name"), "first-discovery order is kept")
	assert.Equal(t, "b", nodes[1].Attr("name"))
}

func TestResolveVisibleFiltersHidden(t *testing.T) {
	e, _ := newTestEngine(t, `
		<div hidden><input class="field" name="a"></div>
		<input class="field" name="b">`)

	nodes, err := e.ResolveVisible(context.Background(), Strategy{
		Name:    "fields",
		Queries: []string{"input.field"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "b", nodes[0].Attr("name"))
}

func TestDefaultSetStrategiesAreNonEmpty(t *testing.T) {
	set := DefaultSet()
	for name, st := range map[string]Strategy{
		"step container": set.StepContainer,
		"next":           set.NextButton,
		"review":         set.ReviewButton,
		"submit":         set.SubmitButton,
		"progress":       set.ProgressBar,
		"errors":         set.ErrorMarker,
		"success":        set.SuccessBanner,
		"dismiss":        set.DismissButton,
		"fields":         set.Fields,
		"fieldsets":      set.Fieldsets,
		"listbox":        set.ListboxOptions,
	} {
		assert.False(t, st.Empty(), "%s strategy must have candidates", name)
		assert.NotEmpty(t, st.Name, name)
	}
}
