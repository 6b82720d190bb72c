// Package mechanics implements the deterministic rules machinery of the
// engine: dice expression parsing and seeded rolling, skill modifier
// resolution, observation decay weighting, the state-operation evaluator,
// and the restricted schema validator that guards scene state.
package mechanics
