package selector

// Set bundles the strategies for every logical element the navigator touches.
// The defaults target the application wizard's known structural variants;
// variants ship as configuration rather than code changes.
type Set struct {
	StepContainer  Strategy
	NextButton     Strategy
	ReviewButton   Strategy
	SubmitButton   Strategy
	ProgressBar    Strategy
	ErrorMarker    Strategy
	SuccessBanner  Strategy
	DismissButton  Strategy
	Fields         Strategy
	Fieldsets      Strategy
	ListboxOptions Strategy
}

// DefaultSet returns the built-in strategy table for the target UI family.
func DefaultSet() Set {
	return Set{
		StepContainer: Strategy{
			Name: "step-container",
			Queries: []string{
				"div[data-test='application-modal']",
				"form[data-test='application-form']",
				".application-modal",
				".jobs-apply-modal",
			},
		},
		NextButton: Strategy{
			Name: "next-button",
			Queries: []string{
				"button[data-test='next']",
				"button[aria-label='Continue to next step']",
				"button[data-control-name='continue_unify']",
			},
			Text: "next",
		},
		ReviewButton: Strategy{
			Name: "review-button",
			Queries: []string{
				"button[data-test='review']",
				"button[aria-label='Review your application']",
			},
			Text: "review",
		},
		SubmitButton: Strategy{
			Name: "submit-button",
			Queries: []string{
				"button[data-test='submit']",
				"button[aria-label='Submit application']",
			},
			Text: "submit application",
		},
		ProgressBar: Strategy{
			Name: "progress-bar",
			Queries: []string{
				"progress[data-test='progress']",
				".application-progress progress",
				"div[role='progressbar']",
			},
		},
		ErrorMarker: Strategy{
			Name: "error-marker",
			Queries: []string{
				"div[data-test='form-error']",
				".field-error",
				"div[role='alert']",
				".artdeco-inline-feedback--error",
			},
		},
		SuccessBanner: Strategy{
			Name: "success-banner",
			Queries: []string{
				"div[data-test='application-success']",
				".application-confirmation",
				"h2[data-test='post-apply-header']",
			},
			TextTag: "h2",
			Text:    "application sent",
		},
		DismissButton: Strategy{
			Name: "dismiss-button",
			Queries: []string{
				"button[data-test='dismiss']",
				"button[aria-label='Dismiss']",
				".modal-close",
			},
			Text: "done",
		},
		Fields: Strategy{
			Name: "form-fields",
			Queries: []string{
				"input",
				"select",
				"textarea",
			},
		},
		Fieldsets: Strategy{
			Name: "choice-fieldsets",
			Queries: []string{
				"fieldset",
			},
		},
		ListboxOptions: Strategy{
			Name: "listbox-options",
			Queries: []string{
				"div[role='option']",
				"li[role='option']",
				".autocomplete-option",
			},
		},
	}
}
