// Package mastery holds the pure per-attempt math: the Bayesian knowledge
// tracing estimator, the SM-2 review scheduler with its quality derivation,
// and the difficulty recommender. Nothing here touches storage or clocks
// beyond the time values callers pass in.
package mastery
