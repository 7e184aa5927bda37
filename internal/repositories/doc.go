// Package repositories implements SQLite persistence for all domain entities.
//
// Every repository is built over a [DBTX], the query surface shared by *sql.DB and *sql.Tx.
// Repositories used inside multi-step mutations expose WithTx so a caller can bind them to one
// transaction and commit or roll back as a unit (see [WithinTx]).
//
// Key Implementations:
//   - [UserRepository] : accounts with case-insensitive email lookups
//   - [GiftRepository] : wishlist entries; an empty image URL is stored as NULL
//   - [JobRepository] : job listings and their screenshot keys
//   - [PlaylistRepository], [VideoRepository] : the mirrored YouTube library
//   - [CredentialRepository] : one stored YouTube OAuth token per user
//   - [ListRepository], [CategoryRepository], [ItemRepository] : shared lists and their ordering
//
// Missing rows surface as errors wrapping [shared.ErrNotFound], so callers can branch with errors.Is.
//
// Ordering for new categories and items is computed as one past the current maximum in the sibling group
// ([CategoryRepository.NextOrdering], [ItemRepository.NextOrdering]).
package repositories
