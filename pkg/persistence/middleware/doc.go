// Package middleware wraps snapshot stores with cross-cutting behaviour.
//
// An agent's model may hold whatever it believes about its environment and the people
// in it, so sessions can be sealed with AES-GCM before they reach the backing store.
package middleware
