// Package progress renders pipeline progress.
//
// Console output uses a progress bar on terminals and periodic
// "n frames out of N frames" log lines otherwise (see ForConsole). A
// Tracker keeps the latest state for the status server and fans updates out
// to subscribers.
package progress
