// Package device stores the configured Duux devices.
//
// Each configured device is an Entry: a Config (device id, name, model,
// optional broker override and credentials) plus bookkeeping. Entries live
// in SQLite and are cached in memory by Registry.
//
// # Identifiers
//
// Device ids are the MAC-derived identifiers the vendor broker uses in
// topic names. They are lowercased on the way in (Normalize), so
// "AA:BB:CC" and "aa:bb:cc" are the same device.
//
// # Entry versions
//
// Version 1 entries predate model selection and may carry no model.
// Repository.UpgradeEntries moves them to version 2 and assigns
// DefaultModel, which is the only model those installations could have had.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	if _, err := repo.UpgradeEntries(ctx); err != nil {
//	    return err
//	}
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
package device
