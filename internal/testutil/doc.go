// Package testutil contains helper builders used across tests to reduce
// boilerplate when scripting model replies and constructing agent states.
// They are not intended for production usage.
package testutil
