// Package models defines domain entities and persistence interfaces for the personal site.
//
// Entities fall into four groups:
//
//  1. Accounts: [User] with bcrypt password hashing
//  2. Site content: [Gift] wishlist entries and [Job] listings
//  3. Library: [Playlist] and [Video] rows mirrored from YouTube, plus [YouTubeCredential]
//  4. Lists: [CustomList], [ListCategory] and [ListItem], shared between users
//
// Every entity implements [Model], whose Validate method returns errors wrapping [shared.ErrInvalidInput].
// The [Repository] interface describes the CRUD surface repositories expose for simple entities.
package models
