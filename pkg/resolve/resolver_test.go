package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/formpilot/formpilot/internal/config"
	"github.com/formpilot/formpilot/pkg/answercache"
	"github.com/formpilot/formpilot/pkg/answersvc"
	"github.com/formpilot/formpilot/pkg/classifier"
)

// svcFunc adapts a function to the AnswerService interface.
type svcFunc func(ctx context.Context, req answersvc.Request) (string, error)

func (f svcFunc) Answer(ctx context.Context, req answersvc.Request) (string, error) {
	return f(ctx, req)
}

var testProfile = config.ProfileConfig{
	FreeText:        "Backend engineer, 6 years of Go.",
	Email:           "jo@example.com",
	Phone:           "555-0100",
	Country:         "Canada",
	City:            "Toronto",
	ExperienceYears: "6",
}

func newTestResolver(t *testing.T, svc AnswerService) (*Resolver, *answercache.Cache) {
	t.Helper()
	cache := answercache.New(nil, 0, zaptest.NewLogger(t))
	return New(cache, svc, testProfile, zaptest.NewLogger(t)), cache
}

func TestResolveExplicitWinsAndIsCached(t *testing.T) {
	svc := svcFunc(func(ctx context.Context, req answersvc.Request) (string, error) {
		t.Fatal("service must not be consulted for explicit values")
		return "", nil
	})
	r, cache := newTestResolver(t, svc)

	got := r.Resolve(context.Background(), "Desired salary", Options{Explicit: "90000"})
	assert.Equal(t, "90000", got)

	cached, ok := cache.Get("Desired salary", answercache.Hints{})
	require.True(t, ok, "explicit value is written back to the cache")
	assert.Equal(t, "90000", cached)
}

func TestResolveConsentSkipsCacheAndService(t *testing.T) {
	svc := svcFunc(func(ctx context.Context, req answersvc.Request) (string, error) {
		t.Fatal("service must not be consulted for consent fields")
		return "", nil
	})
	r, cache := newTestResolver(t, svc)

	// A poisoned cache entry must not leak into a consent commit.
	cache.Set(context.Background(), "I agree to the terms", "No", answercache.Hints{})

	got := r.Resolve(context.Background(), "I agree to the terms", Options{
		Class:   classifier.Classification{IsConsent: true},
		Choices: []string{"I do not agree", "Yes, I agree"},
	})
	assert.Equal(t, "Yes, I agree", got)
}

func TestResolveConsentWithoutChoices(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	got := r.Resolve(context.Background(), "Please confirm that the above is accurate", Options{
		Class: classifier.Classification{IsConsent: true},
	})
	assert.Equal(t, "Yes", got)
}

func TestResolveCacheHitBeforeService(t *testing.T) {
	var calls int
	svc := svcFunc(func(ctx context.Context, req answersvc.Request) (string, error) {
		calls++
		return "from service", nil
	})
	r, cache := newTestResolver(t, svc)
	cache.Set(context.Background(), "Notice period", "2 weeks", answercache.Hints{})

	got := r.Resolve(context.Background(), "Notice period", Options{})
	assert.Equal(t, "2 weeks", got)
	assert.Zero(t, calls)
}

func TestResolveServiceAnswerIsCachedBack(t *testing.T) {
	svc := svcFunc(func(ctx context.Context, req answersvc.Request) (string, error) {
		assert.Equal(t, "Backend engineer, 6 years of Go.", req.ProfileText)
		return "Kubernetes and Postgres", nil
	})
	r, cache := newTestResolver(t, svc)

	got := r.Resolve(context.Background(), "Main technologies", Options{})
	assert.Equal(t, "Kubernetes and Postgres", got)

	cached, ok := cache.Get("Main technologies", answercache.Hints{})
	require.True(t, ok)
	assert.Equal(t, "Kubernetes and Postgres", cached)
}

func TestResolveServiceFailureFallsBackToDefaults(t *testing.T) {
	svc := svcFunc(func(ctx context.Context, req answersvc.Request) (string, error) {
		return "", errors.New("service down")
	})
	r, _ := newTestResolver(t, svc)

	got := r.Resolve(context.Background(), "Which country do you live in", Options{
		Class: classifier.Classification{IsCountry: true},
	})
	assert.Equal(t, "Canada", got)
}

func TestResolveDefaultsTable(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		class classifier.Classification
		want  string
	}{
		{"country", classifier.Classification{IsCountry: true}, "Canada"},
		{"city", classifier.Classification{IsCity: true}, "Toronto"},
		{"phone", classifier.Classification{IsPhone: true}, "555-0100"},
		{"email", classifier.Classification{IsEmail: true}, "jo@example.com"},
		{"experience", classifier.Classification{IsExperience: true}, "6"},
		{"unclassified", classifier.Classification{}, "Yes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(ctx, "q "+tc.name, Options{Class: tc.class})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveSummaryDefaultIsNonEmptyProse(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	got := r.Resolve(context.Background(), "Tell us about yourself", Options{
		Class: classifier.Classification{IsSummary: true},
	})
	assert.NotEmpty(t, got)
	assert.NotEqual(t, "Yes", got)
}

func TestResolveForwardsConstraintsToService(t *testing.T) {
	var gotReq answersvc.Request
	svc := svcFunc(func(ctx context.Context, req answersvc.Request) (string, error) {
		gotReq = req
		return "3", nil
	})
	r, _ := newTestResolver(t, svc)

	r.Resolve(context.Background(), "Years with Go", Options{
		Class:   classifier.Classification{IsExperience: true},
		Choices: []string{"1", "2", "3"},
	})
	assert.True(t, gotReq.NumericOnly)
	assert.Equal(t, []string{"1", "2", "3"}, gotReq.Options)
}
