// Package captcha renders and validates one-click image challenges.
//
// A challenge shows six distorted images: one from the dataset's first
// category and five decoys drawn from the others. The user must click the
// image(s) from the first category. Correct positions are kept server side in
// a single-use state entry; only the token travels to the client.
//
// # Architecture boundaries
//
// The dataset is loaded lazily and shared by every Engine built over it.
// Engines hold no per-challenge memory.
//
// # What this package must NOT do
//
//   - expose correct positions to the client
//   - accept a token more than once
package captcha
