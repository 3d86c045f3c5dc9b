package logging

// Field name constants for structured logging.
const (
	FieldError   = "error"
	FieldPath    = "path"
	FieldURI     = "uri"
	FieldVersion = "version"
	FieldElapsed = "elapsed"
	FieldEdits   = "edits"
	FieldMethod  = "method"
	FieldLine    = "line"
	FieldMode    = "mode"
	FieldCells   = "cells"
	FieldOutput  = "output"
	FieldLang    = "lang"
)
