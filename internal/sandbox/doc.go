// Package sandbox executes one resolved command inside an ephemeral,
// isolated working directory.
//
// Each run stages only the declared input files into a fresh directory,
// rewrites the argument list so the external tool sees sandbox-local names
// only (never the real source paths), pre-creates declared output
// directories, invokes the process with the sandbox as its working
// directory, harvests the declared outputs back to their stable destination
// paths, and tears the sandbox down unconditionally — success or failure.
//
// Execution is synchronous and exclusive: a sandbox belongs to exactly one
// invocation for the lifetime of the call. There is no timeout or retry; a
// hung tool blocks the walk, which is a documented limitation of the
// pipeline, not something this package papers over.
package sandbox
