// Package profile holds the declarative description of each Duux model.
//
// A profile lists what a model can do: an optional fan capability and
// groups of switches, sensors, numbers, selects and binary sensors. Each
// entry names the state attribute it reads and, for writable entries, the
// command it sends. Bindings are built from profiles; no model needs code
// of its own.
//
// The catalogue ships embedded in the binary (profiles.yaml). Every
// profile is checked against a fixed schema at load time. A profile that
// fails is logged and excluded, so its model cannot be configured, while
// the remaining models stay available.
package profile
