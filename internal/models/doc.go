// Package models defines the domain entities of the reading tracker.
//
// Persistent entities implement [Model] and are stored by the repositories package:
//   - [User] : an account that owns library data
//   - [LibraryEntry] : a saved catalog title
//   - [ProgressRecord] : reading state for one entry (status, chapter, rating, notes)
//   - [Goal] : a monthly, yearly, or custom reading target
//   - [Achievement] : an unlocked milestone, once per type per user
//
// [Manga] and [Tag] are transfer objects normalized from the public catalog API.
package models
