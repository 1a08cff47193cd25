package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/pkg/answercache"
	"github.com/formpilot/formpilot/pkg/classifier"
	"github.com/formpilot/formpilot/pkg/dom"
	"github.com/formpilot/formpilot/pkg/dom/memdom"
	"github.com/formpilot/formpilot/pkg/resolve"
	"github.com/formpilot/formpilot/pkg/selector"
)

// harness wires a chain against an in-memory page with a memory-only cache
// and no answer service.
type harness struct {
	page  *memdom.Page
	chain *Chain
	cache *answercache.Cache
	cls   *classifier.Classifier
}

func newHarness(t *testing.T, src string) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	page := memdom.MustParse(src)
	cache := answercache.New(nil, 0, logger)
	resolver := resolve.New(cache, nil, config.ProfileConfig{
		Email:           "jo@example.com",
		Phone:           "555-0100",
		Country:         "Canada",
		City:            "Toronto",
		ExperienceYears: "6",
	}, logger)
	engine := selector.NewEngine(page, logger)
	chain := NewChain(Deps{
		Page:       page,
		Engine:     engine,
		Resolver:   resolver,
		Strategies: selector.DefaultSet(),
		Logger:     logger,
	})
	return &harness{
		page:  page,
		chain: chain,
		cache: cache,
		cls:   classifier.New(config.Default().Classifier, logger),
	}
}

func (h *harness) node(t *testing.T, expr string) dom.Node {
	t.Helper()
	nodes, err := h.page.Query(context.Background(), expr, nil)
	require.NoError(t, err)
	require.NotEmpty(t, nodes, "no match for %q", expr)
	return nodes[0]
}

// dispatch classifies the node and routes it through the chain.
func (h *harness) dispatch(t *testing.T, expr, label string) bool {
	t.Helper()
	ctx := context.Background()
	n := h.node(t, expr)
	cls := h.cls.Classify(ctx, n, label)
	ok, err := h.chain.Dispatch(ctx, n, label, cls)
	require.NoError(t, err)
	return ok
}

func TestTextHandlerFillsFromCache(t *testing.T) {
	h := newHarness(t, `<input type="text" name="fav">`)
	h.cache.Set(context.Background(), "Favorite editor", "vim", answercache.Hints{})

	require.True(t, h.dispatch(t, "input", "Favorite editor"))
	val, err := h.node(t, "input").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vim", val)
}

func TestTextHandlerProfileDefaults(t *testing.T) {
	h := newHarness(t, `<input type="text" name="city">`)

	require.True(t, h.dispatch(t, "input", "Which city are you based in?"))
	val, err := h.node(t, "input").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Toronto", val)
}

func TestTextHandlerExperienceIsNumeric(t *testing.T) {
	h := newHarness(t, `<input type="text" name="years">`)

	require.True(t, h.dispatch(t, "input", "How many years of experience do you have with Go?"))
	val, err := h.node(t, "input").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6", val)
}

func TestSelectHandlerMatchesCachedAnswer(t *testing.T) {
	h := newHarness(t, `<select name="visa">
		<option value="">Please select</option>
		<option value="y">Yes</option>
		<option value="n">No</option>
	</select>`)
	h.cache.Set(context.Background(), "Do you require sponsorship", "No", answercache.Hints{})

	require.True(t, h.dispatch(t, "select", "Do you require sponsorship"))
	val, err := h.node(t, "select").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n", val)
}

func TestSelectHandlerSkipsPlaceholder(t *testing.T) {
	h := newHarness(t, `<select name="source">
		<option value="">Choose an option</option>
		<option value="ref">Referral</option>
		<option value="web">Job board</option>
	</select>`)

	// No cached answer and no service: the resolver's generic "Yes" matches
	// nothing, so the first real option is committed.
	require.True(t, h.dispatch(t, "select", "How did you hear about us?"))
	val, err := h.node(t, "select").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ref", val)
}

func TestSelectHandlerCountryFromProfile(t *testing.T) {
	h := newHarness(t, `<select name="country">
		<option value="">Please select</option>
		<option value="us">United States</option>
		<option value="ca">Canada</option>
		<option value="de">Germany</option>
	</select>`)

	require.True(t, h.dispatch(t, "select", "Country of residence"))
	val, err := h.node(t, "select").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ca", val)
}

func TestRadioHandlerWidensToGroup(t *testing.T) {
	h := newHarness(t, `
		<label for="r1">Yes</label><input type="radio" id="r1" name="remote" value="yes">
		<label for="r2">No</label><input type="radio" id="r2" name="remote" value="no">`)
	h.cache.Set(context.Background(), "Are you open to remote work", "No", answercache.Hints{})

	// Hand the handler the first radio; it must still commit the second.
	require.True(t, h.dispatch(t, "#r1", "Are you open to remote work"))
	checked, err := h.node(t, "#r2").Checked(context.Background())
	require.NoError(t, err)
	assert.True(t, checked)
	checked, err = h.node(t, "#r1").Checked(context.Background())
	require.NoError(t, err)
	assert.False(t, checked)
}

func TestRadioHandlerConsentPicksAffirmative(t *testing.T) {
	h := newHarness(t, `
		<label for="c1">I decline</label><input type="radio" id="c1" name="tos" value="no">
		<label for="c2">Yes, I agree</label><input type="radio" id="c2" name="tos" value="yes">`)

	require.True(t, h.dispatch(t, "#c1", "Do you agree to the terms?"))
	checked, err := h.node(t, "#c2").Checked(context.Background())
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestToggleHandlerChecksConsent(t *testing.T) {
	h := newHarness(t, `<input type="checkbox" name="tos">`)

	require.True(t, h.dispatch(t, "input", "I agree to the privacy policy"))
	checked, err := h.node(t, "input").Checked(context.Background())
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestToggleHandlerNoOpWhenAlreadyCorrect(t *testing.T) {
	h := newHarness(t, `<input type="checkbox" name="tos" checked>`)

	require.True(t, h.dispatch(t, "input", "I agree to the privacy policy"))
	checked, err := h.node(t, "input").Checked(context.Background())
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestAutocompleteHandlerPicksSuggestion(t *testing.T) {
	h := newHarness(t, `
		<input role="combobox" name="city">
		<div role="option">Toronto, Ontario, Canada</div>
		<div role="option">Torino, Italy</div>`)

	require.True(t, h.dispatch(t, "input", "City"))
	// The suggestion containing the typed value is clicked; with memdom a
	// click on a div is a no-op beyond bindings, so the typed value stands.
	val, err := h.node(t, "input").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Toronto", val)
}

func TestAutocompleteHandlerKeepsTypedValueWithoutSuggestions(t *testing.T) {
	h := newHarness(t, `<input role="combobox" name="city">`)

	require.True(t, h.dispatch(t, "input", "City"))
	val, err := h.node(t, "input").Value(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Toronto", val)
}

func TestFieldsetHandlerLanguageProficiencyPicksHighest(t *testing.T) {
	h := newHarness(t, `<fieldset>
		<legend>What is your level of proficiency in English?</legend>
		<label for="p1">None</label><input type="radio" id="p1" name="prof" value="none">
		<label for="p2">Conversational</label><input type="radio" id="p2" name="prof" value="conversational">
		<label for="p3">Native or bilingual</label><input type="radio" id="p3" name="prof" value="native">
	</fieldset>`)

	require.True(t, h.dispatch(t, "fieldset", "What is your level of proficiency in English?"))
	checked, err := h.node(t, "#p3").Checked(context.Background())
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestFieldsetHandlerYearsPicksLargest(t *testing.T) {
	h := newHarness(t, `<fieldset>
		<legend>Years of experience</legend>
		<label for="y1">0-1 years</label><input type="radio" id="y1" name="yrs" value="a">
		<label for="y2">1-3 years</label><input type="radio" id="y2" name="yrs" value="b">
		<label for="y3">5+ years</label><input type="radio" id="y3" name="yrs" value="c">
	</fieldset>`)
	h.cache.Set(context.Background(), "Years of experience", "twenty", answercache.Hints{})

	require.True(t, h.dispatch(t, "fieldset", "Years of experience"))
	checked, err := h.node(t, "#y3").Checked(context.Background())
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestFieldsetHandlerCachedAnswerWins(t *testing.T) {
	h := newHarness(t, `<fieldset>
		<legend>Skill level with Go</legend>
		<label for="s1">Beginner</label><input type="radio" id="s1" name="skill" value="a">
		<label for="s2">Expert</label><input type="radio" id="s2" name="skill" value="b">
	</fieldset>`)
	h.cache.Set(context.Background(), "Skill level with Go", "Beginner", answercache.Hints{})

	require.True(t, h.dispatch(t, "fieldset", "Skill level with Go"))
	checked, err := h.node(t, "#s1").Checked(context.Background())
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestDispatchUnclaimedField(t *testing.T) {
	h := newHarness(t, `<div id="x"></div>`)
	ctx := context.Background()
	n := h.node(t, "#x")
	ok, err := h.chain.Dispatch(ctx, n, "mystery", classifier.Classification{Kind: classifier.KindUnknown})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsAffirmative(t *testing.T) {
	for _, yes := range []string{"Yes", "y", "TRUE", "agree", "Yes, I agree", "yes please"} {
		assert.True(t, isAffirmative(yes), yes)
	}
	for _, no := range []string{"No", "never", "", "nyet", "eyes"} {
		assert.False(t, isAffirmative(no), no)
	}
}

func TestMatchLabel(t *testing.T) {
	labels := []string{"None", "Conversational", "Native or bilingual"}
	assert.Equal(t, 1, matchLabel("conversational", labels))
	assert.Equal(t, 2, matchLabel("Native", labels))
	assert.Equal(t, 1, matchLabel("I am conversational in it", labels))
	assert.Equal(t, -1, matchLabel("fluent", labels))
	assert.Equal(t, -1, matchLabel("", labels))
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, isPlaceholder(dom.Option{Value: "", Label: "anything"}))
	assert.True(t, isPlaceholder(dom.Option{Value: "x", Label: "Select an option"}))
	assert.True(t, isPlaceholder(dom.Option{Value: "x", Label: "Please choose"}))
	assert.False(t, isPlaceholder(dom.Option{Value: "ca", Label: "Canada"}))
}
