// Package binding turns a device profile into live entities.
//
// Build creates one Entity per profile entry: a Fan for the profile's fan
// section, then one Switch, Sensor, Number, Select or BinarySensor per
// entry of each group. Every entity is a dispatch.Listener; it reads its
// state key from each snapshot it receives and keeps its previous value
// when the key is absent.
//
// Writes go through a Commander, normally the device's session. Commands
// are "tune set <key> <int>" strings and delivery is best-effort: an entity
// does not wait for the device to confirm a change. The new value shows up
// when the device next reports its state.
//
// # Fan speed
//
// Fans expose a percentage. It maps onto the native range 1..max_speed:
//
//	speed      = RoundHalfEven(percentage * max_speed / 100), at least 1
//	percentage = floor(speed * 100 / max_speed), 0 when speed is 0
//
// Setting 0% sends power off instead of a speed.
package binding
