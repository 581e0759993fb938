// Package domain models GFS forecast cycles, grid parameter identities and
// the per-place forecast records the ingestion pipeline produces.
//
// # Data Source
//
// The NOAA Global Forecast System runs four times a day at 00, 06, 12 and
// 18 UTC. Each run (a cycle) publishes one GRIB2 file per forecast hour on
// NOMADS under
//
//	{base}/gfs.YYYYMMDD/HH/atmos/gfs.tHHz.pgrb2.0p25.fFFF
//
// Forecast hours are hourly through f120, then every three hours up to f384.
// Files for a cycle appear over roughly ninety minutes, so the newest cycle
// is often incomplete when first seen.
//
// # Staging Layout
//
//	data/YYYYMMDD_HH/gfs_YYYYMMDD_HH_FFF.grib2          raw downloads
//	data/filtered_data/YYYYMMDD_HH/filtered_YYYYMMDD_HHMM_fFFF.grib2
//
// Filtered names carry the valid time (cycle + forecast hour) and the
// forecast hour, so the importer recovers the cycle without reading headers.
//
// # Parameter Identity
//
// A grid message is identified for filtering by (category, level, short
// name, name) with the text parts lower-cased; see ParameterKey. Values are
// stored under a FieldKey whose string form is
//
//	<shortname>_level_<level>_<typeOfLevel>     e.g. 2t_level_2_heightAboveGround
//
// The string form is only produced at the storage boundary.
//
// # Units
//
// Stored values are the raw GRIB units: temperature in kelvin, wind
// components in m/s, precipitation in kg/m² (equal to mm of water),
// pressure in Pa, cloud cover in percent.
package domain
