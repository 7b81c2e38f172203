// Package experiments holds the Experiment domain model: the status state
// machine, the completeness predicates that gate transitions, the changelog
// used to reconstruct launch and completion dates, section form validation,
// and the list filters and orderings.
//
// Nothing here touches storage or the network. The store package persists
// these types and the api package orchestrates them.
package experiments
