// Package demo holds the sample workflows served by the hitch CLI: an essay
// approval flow, a weather agent and a pair of travel advisors that hand the
// conversation to each other. The agents run on rule-based models so they
// work offline and behave the same on every run.
package demo
