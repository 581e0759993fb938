// Package weather derives consumable weather quantities from raw forecast
// records: elevation-adjusted temperature, wind speed and compass
// direction, Beaufort force, storm probability, pressure in hPa, day or
// night, a categorical state summary, alerts, and daily aggregates.
//
// Every function is pure and total. A missing input field yields a nil
// output rather than an error.
//
// Thresholds live in ordered range tables (see [Band]) so each table can be
// tested and tuned on its own.
package weather
