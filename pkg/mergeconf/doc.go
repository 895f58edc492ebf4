// Package mergeconf builds merged formatter configs.
//
// A project can carry its own dprint config next to its sources. When such a
// file exists, the resolved profile config is injected into its extends
// chain, so profile settings apply first and project settings still win. The
// merged result is written to a temp file guarded by a [TempConfig].
package mergeconf
