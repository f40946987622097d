// Package script is a small command language evaluated as stack frames,
// so a script waiting on a call never blocks its root.
//
// A script is a sequence of commands separated by newlines or semicolons.
// Words are bare, "quoted" (with \n, \t and \\ escapes), {braced} (kept
// as an unevaluated block, nesting allowed) or $variable references. A #
// at the start of a command comments out the rest of the line.
//
//	set name world
//	echo hello $name
//	try { /backend.get key } catch { echo failed: $error }
//	include lib/setup.roots
//
// The first word names a command from the CommandRegistry. Otherwise it
// must be a control address such as /backend.get, which is called with
// the remaining words. A script evaluates to the result of its last
// command; the first failure aborts it.
//
// New creates the root behind the script service. Its eval control runs
// each script to completion and replies with the result.
package script
