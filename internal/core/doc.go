// Package core turns customer contact CSV rows into the fixed ad-platform
// matching schema: First Name, Last Name, Phone, Email, Country, Zip, plus
// Mobile Device ID when the input has one.
//
// It has no knowledge of HTTP, files or databases. Rows come in through a
// [RowReader], go out through a [RowWriter], and zip codes are looked up
// through a [ZipSource], so the web handlers, the CLI and tests all drive the
// same [Pipeline].
//
// # Flow
//
//  1. [HeaderResolver] maps raw column names to canonical fields using the
//     [TranslationTable] and a snake_case fallback. Missing required columns
//     abort the run only when no zip can be produced either.
//  2. [Normalizer] trims and lowercases text, resolves the country to ISO2
//     ([CountryNormalizer]) and formats phones as E.164 ([PhoneNormalizer])
//     using the row's country as the region.
//  3. [ZipResolver] fills empty zips from city, state and country. Lookups
//     are cached per run and batched per read-ahead window.
//  4. [HashRecord] replaces each non-empty value with its SHA-256 hex digest
//     when hashing is on.
//
// Output order always equals input order. Per-field problems never abort a
// run: the value falls back (kept raw or left empty) and a [Warning] is
// recorded on the [RunResult].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. Each
// category has a code for support reference:
//
//   - HDR001-HDR002: Header problems (missing columns, missing zip)
//   - TRN001-TRN002: Translation file problems
//   - LKP001-LKP002: Zip lookup configuration and availability
//   - FILE001-FILE006: File errors (size, format, encoding, output path)
//   - REQ001: Invalid request options
//   - RUN001-RUN004: Busy, cancelled and timed out runs
//   - RATE001: Too many requests
package core
