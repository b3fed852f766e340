// Package domain defines the core types and collaborator interfaces of the
// rotation engine.
//
// Concept-oriented files (candidate.go, rotation.go, event.go, record.go, ...)
// hold shared types and cross-cutting interfaces. No implementation code, just
// contracts, so adapters and the app layer can depend on it without cycles.
package domain
