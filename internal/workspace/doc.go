// Package workspace owns the temporary directories that hold one request's
// upload, caption file and encoded output.
//
// A Manager locks its temp root with flock so two processes never share it,
// purges leftovers from a crashed run on startup, and can sweep stale
// directories on a cron schedule. Each Workspace is released exactly once;
// Manager.With guarantees release on every exit path.
package workspace
