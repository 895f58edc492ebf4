// Package routing loads and exposes the dprintx routing configuration: the
// wrapped formatter binary, named profiles, and the ordered rules that map
// files to profiles.
package routing
