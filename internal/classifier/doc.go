// Package classifier turns a free-text task description into a
// model.TaskComplexity. Factor scores come from the semantic oracle when it
// answers in time and from declared keyword tables otherwise, decided
// independently per factor.
package classifier
