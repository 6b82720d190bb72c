// Package domain defines the data contracts for the simulation engine:
// sessions, scenes, character runtimes, moves, adjudications, outcomes,
// observations, state operations, and the append-only turn event journal.
package domain
