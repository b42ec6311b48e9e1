// Package domain models grid-frequency measurements published by Fingrid.
//
// # Data Source
//
// Fingrid publishes the Nordic synchronous area frequency as monthly archives
// (dataset 339) at https://data.fingrid.fi/files/339/. Each archive holds one
// CSV per day, 10 readings per second, named after the day it covers, e.g.
// "2023-05-14.csv". Older months were published as .zip, newer ones as .7z.
//
// # Fingrid Data Conventions
//
// Daily file schema:
//
//	Time,Value
//	2023-05-14 00:00:00.000,49.987
//	2023-05-14 00:00:00.100,49.988
//
// Time is a naive wall-clock timestamp in Finnish local time (Europe/Helsinki).
// Value is the frequency in Hz. Additional numeric columns, if present, are
// carried through and averaged alongside Value.
//
// Daily files may have gaps (logger outages) and duplicate timestamps. Around
// DST transitions a local time can be ambiguous (autumn) or nonexistent
// (spring); [Localizer] resolves both with an explicit policy.
//
// # Weekly Series
//
// Weekly series are keyed by ISO week ([WeekKey]) in the target timezone
// (Europe/Oslo by default) and indexed by local wall-clock second from Monday
// 00:00:00. The grid always has [SecondsPerWeek] slots: labels skipped by a
// spring-forward transition are filled from their neighbours, and the two real
// seconds that share a label during a fall-back transition are averaged.
//
// # Nominal Band
//
// The nominal operating band of the Nordic grid is 49.9–50.1 Hz. A reading is
// outside the band when it is strictly below 49.9 or strictly above 50.1; see
// [Band.Outside].
package domain
