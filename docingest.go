// Package docingest turns a URL or a local PDF file into a structured extract
// for a note-taking application. A host-side Dispatcher hands one task at a
// time to an isolated execution unit (the Worker), which fetches and parses
// markup or validates a PDF payload and reports exactly one terminal Result.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, http/, rod/).
package docingest
