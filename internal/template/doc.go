// Package template renders the DAX query of a configured tool from the
// caller's arguments.
//
// Queries are text/template documents with sprig functions. Caller-supplied
// strings must be inserted through dax (string literal) or daxTable (table
// reference) so quotes are escaped; numbers go through daxNumber.
//
//	EVALUATE FILTER('Opportunities', 'Opportunities'[Stage] = {{ .stage | dax }})
package template
